package engine

import "github.com/stemsi/exstem-delivery/internal/model"

// Reconciliation is the outcome of matching a payload to a frozen snapshot.
// Matched is keyed by instance key; every matched entry carries that key even
// when it arrived in legacy form.
type Reconciliation struct {
	Matched     map[string]model.SubmittedResponse
	Dropped     int
	DroppedKeys []string
}

// Reconcile matches submitted responses to frozen question instances.
//
// Entries carrying an instance key are matched first and exactly; a key the
// snapshot does not contain, or one already matched, is dropped. Entries with
// only a question reference are matched afterwards, each to the first
// occurrence of that reference in frozen order that is still unmatched. That
// legacy path is best effort when a reference repeats. Entries matching
// nothing are dropped and counted; they never fail the whole payload.
func Reconcile(sections []model.SectionSnapshot, submitted []model.SubmittedResponse) Reconciliation {
	known := make(map[string]struct{})
	byRef := make(map[string][]string)
	for _, sec := range sections {
		for _, q := range sec.Questions {
			known[q.InstanceKey] = struct{}{}
			byRef[q.QuestionRef] = append(byRef[q.QuestionRef], q.InstanceKey)
		}
	}

	rec := Reconciliation{Matched: make(map[string]model.SubmittedResponse, len(submitted))}
	drop := func(r model.SubmittedResponse) {
		rec.Dropped++
		if r.InstanceKey != "" {
			rec.DroppedKeys = append(rec.DroppedKeys, r.InstanceKey)
		} else {
			rec.DroppedKeys = append(rec.DroppedKeys, r.QuestionRef)
		}
	}

	var legacy []model.SubmittedResponse
	for _, r := range submitted {
		if r.InstanceKey == "" {
			legacy = append(legacy, r)
			continue
		}
		if _, ok := known[r.InstanceKey]; !ok {
			drop(r)
			continue
		}
		if _, dup := rec.Matched[r.InstanceKey]; dup {
			drop(r)
			continue
		}
		rec.Matched[r.InstanceKey] = r
	}

	for _, r := range legacy {
		key := firstUnmatched(byRef[r.QuestionRef], rec.Matched)
		if key == "" {
			drop(r)
			continue
		}
		r.InstanceKey = key
		rec.Matched[key] = r
	}

	return rec
}

func firstUnmatched(keys []string, matched map[string]model.SubmittedResponse) string {
	for _, k := range keys {
		if _, taken := matched[k]; !taken {
			return k
		}
	}
	return ""
}
