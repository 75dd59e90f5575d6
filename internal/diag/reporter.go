package diag

// Reporter — минимальный контракт получения диагностик.
// Реализации: BagReporter (кладёт в Bag), DedupReporter (фильтр дублей).
type Reporter interface {
	Report(r Record)
}

// BagReporter — адаптер, который пишет в *Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(rec Record) {
	if r.Bag == nil {
		return
	}
	r.Bag.Add(rec)
}

// DedupReporter wraps another Reporter and suppresses duplicate records
// with the same path, code, severity, range and message.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

// NewDedupReporter returns a Reporter that filters out duplicates while
// forwarding unique records to next.
func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{
		next: next,
		seen: make(map[dedupKey]struct{}),
	}
}

func (r *DedupReporter) Report(rec Record) {
	if r == nil {
		return
	}
	key := dedupKey{path: rec.Path, code: rec.Code, sev: rec.Severity, rng: rec.Range, msg: rec.Message}
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	if r.next != nil {
		r.next.Report(rec)
	}
}
