package fetch

import "fmt"

// ConnError indicates the data service could not be reached or the
// connection dropped mid-session.
type ConnError struct {
	Host string
	Err  error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Host, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// AuthError indicates the data service rejected a login or the session
// expired.
type AuthError struct {
	Code string
	Msg  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (code %s): %s", e.Code, e.Msg)
}

// QueryError indicates the data service accepted the session but rejected a
// query.
type QueryError struct {
	Code string
	Msg  string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed (code %s): %s", e.Code, e.Msg)
}

// NoDataError indicates the upstream returned zero rows for an asset in the
// requested range.
type NoDataError struct {
	Code  string
	Start string
	End   string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data for %s in [%s, %s]", e.Code, e.Start, e.End)
}
