package main

import (
	"database/sql"
	"strings"

	"github.com/goliatone/go-errors"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-cmmn/history"
)

// openHistory resolves a history backend uri: memory, sqlite:<path> or
// redis:<addr>.
func openHistory(uri string) (history.Store, func(), error) {
	kind, target, _ := strings.Cut(strings.TrimSpace(uri), ":")
	switch strings.ToLower(kind) {
	case "", "memory":
		return history.NewInMemoryStore(), func() {}, nil
	case "sqlite":
		if target == "" {
			return nil, nil, historyError(uri, "sqlite history needs a path")
		}
		db, err := sql.Open("sqlite", target)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.CategoryExternal, "open sqlite history").
				WithTextCode("CASECTL_HISTORY_UNAVAILABLE")
		}
		return history.NewSQLStore(db), func() { _ = db.Close() }, nil
	case "redis":
		if target == "" {
			return nil, nil, historyError(uri, "redis history needs an address")
		}
		store := history.NewRedisStore(target, "", 0)
		return store, func() { _ = store.Close() }, nil
	default:
		return nil, nil, historyError(uri, "unknown history backend")
	}
}

func historyError(uri, msg string) error {
	return errors.New(msg, errors.CategoryBadInput).
		WithTextCode("CASECTL_INVALID_HISTORY").
		WithMetadata(map[string]any{"history": uri})
}
