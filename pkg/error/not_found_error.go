package error

import (
	"fmt"
	"net/http"
)

// NotFoundError reports a missing record addressed by id.
type NotFoundError string

// NotFound builds the error for a record of the given kind.
func NotFound(kind, id string) NotFoundError {
	return NotFoundError(fmt.Sprintf("%s %s not found", kind, id))
}

func (err NotFoundError) Error() string {
	return string(err)
}

func (err NotFoundError) ErrCode() string {
	return "NOT_FOUND"
}

func (err NotFoundError) StatusCode() int {
	return http.StatusNotFound
}
