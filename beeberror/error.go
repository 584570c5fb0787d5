// Package beeberror defines the BBC error taxonomy that every filing-system
// operation in this server can raise. A beeberror.Error carries both the
// internal Kind (used for programmatic dispatch, e.g. skipping an empty
// TubeHost drive slot during a search) and the BBC MOS error number/string that gets
// serialised onto the wire.
//
// The pattern mirrors rclone's fs/fserrors: a typed error wraps an
// underlying cause, Unwrap lets errors.Is/As see through it, and a
// translation function maps host OS errors onto the taxonomy at the
// filesystem boundary.
package beeberror

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Kind identifies which entry of the BBC error taxonomy an Error belongs to.
type Kind int

// The taxonomy from the filing-system design (§7).
const (
	KindBadName Kind = iota
	KindBadDir
	KindBadDrive
	KindBadAttribute
	KindAmbiguousName
	KindFileNotFound
	KindExists
	KindExistsOnServer
	KindOpen
	KindLocked
	KindReadOnly
	KindVolumeReadOnly
	KindTooBig
	KindChannel
	KindEOF
	KindNotOpenForUpdate
	KindDataLost
	KindDiscFault
	KindWont
	KindBadCommand
	KindNotSupported
	KindOutsideFile
	KindTooManyOpen
	KindDriveEmpty
)

// codeTable gives every Kind its wire-format BBC MOS error
// number and canonical message. These are plausible 8-bit MOS error codes;
// exactly which byte value the real ROM expects for each condition is not
// load-bearing for filing-system semantics, only that server and client
// agree, so one fixed table is all that's required.
var codeTable = map[Kind]struct {
	code byte
	msg  string
}{
	KindBadName:          {0xCC, "Bad name"},
	KindBadDir:           {0xCE, "Bad dir"},
	KindBadDrive:         {0xCF, "Bad drive"},
	KindBadAttribute:     {0xBF, "Bad attribute"},
	KindAmbiguousName:    {0xCC, "Ambiguous name"},
	KindFileNotFound:     {0xD6, "Not found"},
	KindExists:           {0xC4, "Already exists"},
	KindExistsOnServer:   {0xC4, "Exists on server"},
	KindOpen:             {0xC2, "Already open"},
	KindLocked:           {0xC3, "Locked"},
	KindReadOnly:         {0xC1, "Read only"},
	KindVolumeReadOnly:   {0xC1, "Volume read only"},
	KindTooBig:           {0xCB, "Too big"},
	KindChannel:          {0xDE, "Channel"},
	KindEOF:              {0xDF, "EOF"},
	KindNotOpenForUpdate: {0xC1, "Not open for update"},
	KindDataLost:         {0xCA, "Data lost"},
	KindDiscFault:        {0xC7, "Disc fault"},
	KindWont:             {0x93, "Won't"},
	KindBadCommand:       {0xFE, "Bad command"},
	KindNotSupported:     {0xFE, "Unsupported"},
	KindOutsideFile:      {0xB7, "Outside file"},
	KindTooManyOpen:      {0xC0, "Too many open files"},
	KindDriveEmpty:       {0xDD, "Drive empty"},
}

// Error is a BBC-taxonomy error. It always has a Kind and a message; it may
// additionally wrap an underlying cause (e.g. the os.PathError that
// triggered a DiscFault).
type Error struct {
	Kind Kind
	Msg  string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Code returns the BBC MOS error number this Kind maps to.
func (e *Error) Code() byte { return codeTable[e.Kind].code }

// New creates an Error of the given Kind with a custom message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf creates an Error of the given Kind with a formatted message.
func Errorf(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}

// Default creates an Error of the given Kind using its canonical message.
func Default(kind Kind) *Error {
	return &Error{Kind: kind, Msg: codeTable[kind].msg}
}

// Wrap annotates err with kind and msg, keeping err reachable via Unwrap.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is a *Error of the given Kind, looking through
// wrapped errors the way errors.As does. Error has no Is(error) bool method,
// so errors.Is(err, beeberror.Default(kind)) compares pointers and does not
// match a different *Error of the same Kind; this helper is the Kind-based
// comparison used throughout the server.
func Is(err error, kind Kind) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == kind
	}
	return false
}

// FromOS translates a host filesystem error into the BBC taxonomy. ENOENT
// becomes FileNotFound, EEXIST becomes Exists and EACCES/EPERM becomes
// ReadOnly; anything else becomes a DiscFault carrying the original POSIX
// error text. No error is ever silently swallowed by this function.
func FromOS(err error) *Error {
	if err == nil {
		return nil
	}
	var bee *Error
	if errors.As(err, &bee) {
		return bee
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return Wrap(KindFileNotFound, "Not found", err)
	}
	if errors.Is(err, fs.ErrExist) || errors.Is(err, os.ErrExist) {
		return Wrap(KindExists, "Already exists", err)
	}
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, os.ErrPermission) {
		return Wrap(KindReadOnly, "Read only", err)
	}
	return Wrap(KindDiscFault, fmt.Sprintf("POSIX error: %v", err), err)
}
