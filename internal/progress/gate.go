package progress

import (
	"errors"
	"fmt"
)

// AccessDecision is the outcome of gating one chapter view.
type AccessDecision int

const (
	UnlockedFree AccessDecision = iota + 1
	UnlockedPurchased
	LockedSequential
	LockedPayment
)

var decisionNames = map[AccessDecision]string{
	UnlockedFree:      "UNLOCKED_FREE",
	UnlockedPurchased: "UNLOCKED_PURCHASED",
	LockedSequential:  "LOCKED_SEQUENTIAL",
	LockedPayment:     "LOCKED_PAYMENT",
}

func (d AccessDecision) String() string {
	if s, ok := decisionNames[d]; ok {
		return s
	}
	return fmt.Sprintf("AccessDecision(%d)", int(d))
}

func (d AccessDecision) Unlocked() bool {
	return d == UnlockedFree || d == UnlockedPurchased
}

func (d AccessDecision) MarshalText() ([]byte, error) {
	if _, ok := decisionNames[d]; !ok {
		return nil, fmt.Errorf("unknown access decision %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *AccessDecision) UnmarshalText(b []byte) error {
	for k, v := range decisionNames {
		if v == string(b) {
			*d = k
			return nil
		}
	}
	return fmt.Errorf("unknown access decision %q", string(b))
}

// ResolveAccess gates a chapter. Precedence is sequential lock, then payment
// lock, then unlocked. The first chapter has no predecessor and is never
// sequentially locked.
func ResolveAccess(isFreeChapter, hasPurchased, isFirstChapter, isPreviousChapterCompleted bool) AccessDecision {
	if !isFirstChapter && !isPreviousChapterCompleted {
		return LockedSequential
	}
	if !isFreeChapter && !hasPurchased {
		return LockedPayment
	}
	if hasPurchased {
		return UnlockedPurchased
	}
	return UnlockedFree
}

var ErrUnknownChapter = errors.New("chapter not in course")

// Chapter is the slice of chapter metadata the gate needs.
type Chapter struct {
	ID     string
	IsFree bool
}

// ResolveChapterAccess derives the gate inputs for chapterID from the course's
// ordered chapter list and the learner's progress.
func ResolveChapterAccess(ordered []Chapter, chapterID string, list []ChapterProgress, hasPurchased bool) (AccessDecision, error) {
	idx := -1
	for i, c := range ordered {
		if c.ID == chapterID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownChapter, chapterID)
	}
	prevDone := false
	if idx > 0 {
		prevDone = completedSet(list)[ordered[idx-1].ID]
	}
	return ResolveAccess(ordered[idx].IsFree, hasPurchased, idx == 0, prevDone), nil
}
