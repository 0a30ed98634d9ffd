package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func requireAffected(op string, res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return classifyPostgres(op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
