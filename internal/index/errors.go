package index

import "golang.org/x/xerrors"

// ErrNotFound is returned by GetByID/GetByURI/GetToken when no matching row
// exists.
var ErrNotFound = xerrors.New("index: not found")
