package trace

import "time"

// Point emits an instant event when the tracer's level covers scope.
// extra is read as alternating key/value pairs; a trailing key is dropped.
func Point(t Tracer, scope Scope, name, detail string, extra ...string) {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	var kv map[string]string
	if len(extra) >= 2 {
		kv = make(map[string]string, len(extra)/2)
		for i := 0; i+1 < len(extra); i += 2 {
			kv[extra[i]] = extra[i+1]
		}
	}
	t.Emit(&Event{
		Time:   time.Now(),
		Seq:    NextSeq(),
		Kind:   KindPoint,
		Scope:  scope,
		GID:    getGoroutineID(),
		Name:   name,
		Detail: detail,
		Extra:  kv,
	})
}
