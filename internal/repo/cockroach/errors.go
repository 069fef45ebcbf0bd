package cockroach

import (
	"errors"

	"github.com/lib/pq"
)

func isForeignKeyViolation(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code.Name() == "foreign_key_violation"
}
