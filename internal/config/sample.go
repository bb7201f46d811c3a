package config

// Sample is printed by `dbdump config`
const Sample = `# dbdump configuration
# Save as ~/.dbdump.yaml or ./.dbdump.yaml, or pass --config <file>.
# Every key can be overridden with a DBDUMP_ environment variable,
# e.g. DBDUMP_PARALLEL=4 or DBDUMP_DUMPERS_MYSQL_BINARY=/usr/bin/mysqldump.

# All known connections. Names are case-sensitive.
registry:
  - name: primary
    driver: pdo_mysql
    host: 127.0.0.1
    port: 3306
    username: app
    password: ${PRIMARY_PASSWORD}
    database: app
  - name: reports
    driver: mysql
    dsn: "report:secret@tcp(10.0.0.5:3306)/reports"
  - name: analytics
    driver: pgsql
    dsn: "postgres://analyst@10.0.0.6:5432/warehouse"

# Connections dumped when neither --connections nor --profile is given.
# Leave empty to dump every registry connection.
connections: [primary]

# Default target directory, overridden by --path and by profile directories.
directory: ./var/db_backups

profiles:
  - name: nightly
    connections: [primary, reports]
    directory: /srv/backups/nightly

dumpers:
  mysql:
    gzip: true                   # false writes plain .sql files
    # compression: zstd          # gzip | zstd | lz4 | none, overrides gzip when set
    binary: mysqldump
    extra_args: []
    password_transport: defaults-file   # or argument
  postgresql:
    gzip: true
    binary: pg_dump

timeout: 0s          # per dump, 0 disables
parallel: 1          # dumps running at once
probe_timeout: 5s
`
