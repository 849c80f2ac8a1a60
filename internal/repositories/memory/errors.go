package memory

import "github.com/drift-commerce/api/internal/repositories"

type repoError struct {
	msg      string
	notFound bool
	conflict bool
}

func (e *repoError) Error() string       { return e.msg }
func (e *repoError) IsNotFound() bool    { return e.notFound }
func (e *repoError) IsConflict() bool    { return e.conflict }
func (e *repoError) IsUnavailable() bool { return false }

func notFoundError(msg string) error {
	return &repoError{msg: msg, notFound: true}
}

func conflictError(msg string) error {
	return &repoError{msg: msg, conflict: true}
}

var _ repositories.RepositoryError = (*repoError)(nil)
