package db_client

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DSN builds a postgres URL; user and password are escaped.
func DSN(host, port, user, pass, database string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + database,
	}
	return u.String()
}

// Open connects through the pgx stdlib driver and pings within five seconds.
func Open(host, port, user, pass, database string) (*sql.DB, error) {
	db, err := sql.Open("pgx", DSN(host, port, user, pass, database))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
