package resolve

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/solatis/rolebind/internal/types"
)

// DeniedError reports that a deny-list entry matched. Entry is the most
// severe match; Failures lists entries whose expressions could not be evaluated.
type DeniedError struct {
	Entry    types.DenyListEntry
	Failures []error
}

func (e *DeniedError) Error() string {
	if e.Entry.Reason == "" {
		return fmt.Sprintf("member is deny-listed by entry %s (action %s)", e.Entry.ID, e.Entry.Action)
	}
	return fmt.Sprintf("member is deny-listed by entry %s (action %s): %s", e.Entry.ID, e.Entry.Action, e.Entry.Reason)
}

func (e *DeniedError) Unwrap() error { return types.ErrDenied }

// DenyListEntryError is a parse or evaluation failure of one custom deny-list entry.
type DenyListEntryError struct {
	EntryID types.DenyListID
	Err     error
}

func (e *DenyListEntryError) Error() string {
	return fmt.Sprintf("deny-list entry %s: %v", e.EntryID, e.Err)
}

func (e *DenyListEntryError) Unwrap() []error {
	return []error{types.ErrDenyListExpression, e.Err}
}

// BindError is a parse or evaluation failure of a custom bind. It aborts resolution.
type BindError struct {
	BindID types.BindID
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("custom bind %s: %v", e.BindID, e.Err)
}

func (e *BindError) Unwrap() []error {
	return []error{types.ErrCustomBind, e.Err}
}

// InvalidNicknameError carries a resolved nickname that is empty or too long.
type InvalidNicknameError struct {
	Nickname string
}

func (e *InvalidNicknameError) Error() string {
	if strings.TrimSpace(e.Nickname) == "" {
		return fmt.Sprintf("invalid nickname %q: resolved to a blank string", e.Nickname)
	}
	n := utf8.RuneCountInString(e.Nickname)
	return fmt.Sprintf("invalid nickname %q: %d characters, limit is %d", e.Nickname, n, types.MaxNicknameLength)
}

func (e *InvalidNicknameError) Unwrap() error { return types.ErrInvalidNickname }

// AbortError wraps an error that stopped resolution after the deny-list stage,
// keeping the deny-list failures collected before it.
type AbortError struct {
	Err      error
	Failures []error
}

func (e *AbortError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%v (deny-list failures: %s)", e.Err, strings.Join(msgs, "; "))
}

func (e *AbortError) Unwrap() error { return e.Err }

// DenyListFailures returns the deny-list failures carried by a resolution error.
func DenyListFailures(err error) []error {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Failures
	}
	var aborted *AbortError
	if errors.As(err, &aborted) {
		return aborted.Failures
	}
	return nil
}

// withFailures attaches deny-list failures to err; err is returned as is when
// there are none.
func withFailures(err error, failures []error) error {
	if len(failures) == 0 {
		return err
	}
	return &AbortError{Err: err, Failures: failures}
}
