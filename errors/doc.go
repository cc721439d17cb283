// Package errors provides structured errors for the wasm bridge.
//
// Every error carries a Phase (where in processing it occurred) and a Kind
// (what went wrong). Errors with the same Phase and Kind match under
// errors.Is, so callers can classify failures without string inspection:
//
//	_, err := inst.Call(ctx, "missing")
//	if errors.Is(err, &bridgeerrors.Error{Phase: PhaseCall, Kind: KindNotFound}) {
//	    // export does not exist
//	}
package errors
