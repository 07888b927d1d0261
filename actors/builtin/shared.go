package builtin

import (
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/DianaJonathan/timecapsule/actors/runtime"
)

///// Code shared by multiple built-in actors. /////

// Default hamt bitwidth for a capsule store's maps.
const DefaultHamtBitwidth = 5

// Aborts with an ErrIllegalArgument if predicate is not true.
func RequireParam(rt runtime.Runtime, predicate bool, msg string, args ...interface{}) {
	if !predicate {
		rt.Abortf(exitcode.ErrIllegalArgument, msg, args...)
	}
}

// Aborts with a formatted message if err is not nil.
// The provided message will be suffixed by ": %s" and the provided args suffixed by the err.
// The exit code is taken from the error if it carries one, otherwise defaultExitCode.
func RequireNoErr(rt runtime.Runtime, err error, defaultExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	if err != nil {
		newMsg := msg + ": %s"
		newArgs := append(args, err)
		code := exitcode.Unwrap(err, defaultExitCode)
		rt.Abortf(code, newMsg, newArgs...)
	}
}
