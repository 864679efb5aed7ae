package assessment_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-progress/internal/assessment"
)

func single(id, correct string, points int, opts ...string) assessment.Question {
	q := assessment.Question{ID: id, Kind: assessment.KindSingle, Points: points}
	for _, o := range opts {
		q.Options = append(q.Options, assessment.Option{ID: o, IsCorrect: o == correct})
	}
	return q
}

func multiple(id string, correct []string, points int, opts ...string) assessment.Question {
	q := assessment.Question{ID: id, Kind: assessment.KindMultiple, Points: points, CorrectOptionIDs: correct}
	for _, o := range opts {
		q.Options = append(q.Options, assessment.Option{ID: o})
	}
	return q
}

func text(id string) assessment.Question {
	return assessment.Question{ID: id, Kind: assessment.KindText, Points: 5}
}

func ans(qid string, sel ...string) assessment.Answer {
	return assessment.Answer{QuestionID: qid, SelectedOptionIDs: sel}
}

func TestScoreExam_TwoSinglesAllCorrect(t *testing.T) {
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{
		single("q1", "a", 10, "a", "b"),
		single("q2", "b", 10, "a", "b"),
	}}
	res, err := assessment.ScoreExam(e, []assessment.Answer{ans("q1", "a"), ans("q2", "b")})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, assessment.GradeA, res.Grade)
	assert.Equal(t, 20, res.EarnedPoints)
	assert.Equal(t, 20, res.TotalPoints)
}

func TestScoreExam_MultipleSubsetEarnsNothing(t *testing.T) {
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{
		multiple("q1", []string{"A", "B"}, 10, "A", "B", "C"),
	}}
	res, err := assessment.ScoreExam(e, []assessment.Answer{ans("q1", "A")})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, assessment.GradeF, res.Grade)
}

func TestScoreExam_MultipleAllOrNothing(t *testing.T) {
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{
		multiple("q1", []string{"A", "B"}, 10, "A", "B", "C"),
	}}
	tests := []struct {
		name     string
		selected []string
		want     int
	}{
		{name: "exact", selected: []string{"B", "A"}, want: 100},
		{name: "subset", selected: []string{"B"}, want: 0},
		{name: "superset", selected: []string{"A", "B", "C"}, want: 0},
		{name: "disjoint", selected: []string{"C"}, want: 0},
		{name: "duplicates collapse", selected: []string{"A", "B", "A"}, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := assessment.ScoreExam(e, []assessment.Answer{ans("q1", tt.selected...)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Score)
		})
	}
}

func TestScoreExam_SinglePenalizesExtraSelections(t *testing.T) {
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{single("q1", "a", 1, "a", "b")}}
	res, err := assessment.ScoreExam(e, []assessment.Answer{ans("q1", "a", "b")})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, assessment.OutcomeIncorrect, res.Outcomes[0].Outcome)
}

func TestScoreExam_NoAnswersScoresZero(t *testing.T) {
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{
		single("q1", "a", 3, "a", "b"),
		multiple("q2", []string{"x"}, 2, "x", "y"),
		text("q3"),
	}}
	res, err := assessment.ScoreExam(e, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.NeedsManualReview)
	for _, o := range res.Outcomes[:2] {
		assert.Equal(t, assessment.OutcomeUnanswered, o.Outcome)
	}
}

func TestScoreExam_TextExcludedFromTotals(t *testing.T) {
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{
		single("q1", "a", 10, "a", "b"),
		text("q2"),
	}}
	res, err := assessment.ScoreExam(e, []assessment.Answer{
		ans("q1", "a"),
		{QuestionID: "q2", TextResponse: "an essay"},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, 10, res.TotalPoints)
	assert.True(t, res.NeedsManualReview)
}

func TestScoreExam_TextOnlyExamScoresZero(t *testing.T) {
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{text("q1")}}
	res, err := assessment.ScoreExam(e, []assessment.Answer{{QuestionID: "q1", TextResponse: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 0, res.TotalPoints)
}

func TestScoreExam_RoundsHalfUp(t *testing.T) {
	// 1 of 8 points = 12.5%
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{
		single("q1", "a", 1, "a", "b"),
		single("q2", "a", 7, "a", "b"),
	}}
	res, err := assessment.ScoreExam(e, []assessment.Answer{ans("q1", "a"), ans("q2", "b")})
	require.NoError(t, err)
	assert.Equal(t, 13, res.Score)

	// 2 of 3 points = 66.67%
	e = assessment.Exam{ID: "e2", Questions: []assessment.Question{
		single("q1", "a", 1, "a", "b"),
		single("q2", "a", 1, "a", "b"),
		single("q3", "a", 1, "a", "b"),
	}}
	res, err = assessment.ScoreExam(e, []assessment.Answer{ans("q1", "a"), ans("q2", "a")})
	require.NoError(t, err)
	assert.Equal(t, 67, res.Score)
	assert.Equal(t, assessment.GradeD, res.Grade)
}

func TestScoreExam_DefaultPoints(t *testing.T) {
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{
		single("q1", "a", 0, "a", "b"),
		single("q2", "a", 0, "a", "b"),
	}}
	res, err := assessment.ScoreExam(e, []assessment.Answer{ans("q1", "a")})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Score)
	assert.Equal(t, 2, res.TotalPoints)
}

func TestScoreExam_InvalidSubmission(t *testing.T) {
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{single("q1", "a", 1, "a", "b")}}

	_, err := assessment.ScoreExam(e, []assessment.Answer{ans("nope", "a")})
	assert.True(t, errors.Is(err, assessment.ErrInvalidSubmission))

	_, err = assessment.ScoreExam(e, []assessment.Answer{ans("q1", "a"), ans("q1", "b")})
	assert.True(t, errors.Is(err, assessment.ErrInvalidSubmission))

	noOpts := assessment.Exam{ID: "e2", Questions: []assessment.Question{{ID: "q1", Kind: assessment.KindSingle, Points: 1}}}
	_, err = assessment.ScoreExam(noOpts, nil)
	assert.True(t, errors.Is(err, assessment.ErrInvalidSubmission))
}

func TestScoreExam_MalformedQuestionWarns(t *testing.T) {
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{
		single("q1", "a", 1, "a", "b"),
		multiple("q2", nil, 1, "x", "y"), // no correct option anywhere
	}}
	res, err := assessment.ScoreExam(e, []assessment.Answer{ans("q1", "a"), ans("q2", "x")})
	require.NoError(t, err)
	assert.Equal(t, 50, res.Score)
	require.Len(t, res.Warnings, 1)

	var mq *assessment.MalformedQuestionError
	require.True(t, errors.As(res.Warnings[0], &mq))
	assert.Equal(t, "q2", mq.QuestionID)
	assert.Equal(t, assessment.OutcomeMalformed, res.Outcomes[1].Outcome)
}

func TestScoreExam_UnusableKeysNeverCredit(t *testing.T) {
	twoKeys := assessment.Question{ID: "s", Kind: assessment.KindSingle, Points: 1,
		Options: []assessment.Option{{ID: "a", IsCorrect: true}, {ID: "b", IsCorrect: true}}}
	foreignKey := assessment.Question{ID: "m", Kind: assessment.KindMultiple, Points: 1,
		CorrectOptionIDs: []string{"zzz"}, Options: []assessment.Option{{ID: "a"}, {ID: "b"}}}
	ok := single("q", "a", 2, "a", "b")
	e := assessment.Exam{ID: "e1", Questions: []assessment.Question{twoKeys, foreignKey, ok}}

	for _, sel := range [][]string{{"a"}, {"b"}, {"a", "b"}} {
		res, err := assessment.ScoreExam(e, []assessment.Answer{ans("s", sel...), ans("m", "a"), ans("q", "a")})
		require.NoError(t, err)
		assert.Equal(t, 50, res.Score, "selection %v", sel)
		assert.Equal(t, assessment.OutcomeMalformed, res.Outcomes[0].Outcome)
		assert.Equal(t, assessment.OutcomeMalformed, res.Outcomes[1].Outcome)
		require.Len(t, res.Warnings, 2)
		var mq *assessment.MalformedQuestionError
		require.True(t, errors.As(res.Warnings[1], &mq))
		assert.Equal(t, "m", mq.QuestionID)
	}

	// selecting the foreign key id is not an answer at all
	_, err := assessment.ScoreExam(e, []assessment.Answer{ans("m", "zzz")})
	assert.True(t, errors.Is(err, assessment.ErrInvalidSubmission))
}

func TestExamCheckKeys(t *testing.T) {
	good := assessment.Exam{ID: "e", Questions: []assessment.Question{
		single("q1", "a", 1, "a", "b"),
		multiple("q2", []string{"x", "y"}, 1, "x", "y", "z"),
		text("q3"),
	}}
	assert.NoError(t, good.CheckKeys())

	tests := []struct {
		name string
		q    assessment.Question
	}{
		{name: "no key", q: multiple("bad", nil, 1, "x")},
		{name: "single with two keys", q: assessment.Question{ID: "bad", Kind: assessment.KindSingle,
			CorrectOptionIDs: []string{"a", "b"}, Options: []assessment.Option{{ID: "a"}, {ID: "b"}}}},
		{name: "key outside options", q: multiple("bad", []string{"x", "w"}, 1, "x", "y")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := good
			e.Questions = append(append([]assessment.Question{}, good.Questions...), tt.q)
			var mq *assessment.MalformedQuestionError
			require.True(t, errors.As(e.CheckKeys(), &mq))
			assert.Equal(t, "bad", mq.QuestionID)
		})
	}
}

func TestScoreExam_AllCorrectIsAlwaysHundred(t *testing.T) {
	for n := 1; n <= 12; n++ {
		var qs []assessment.Question
		var as []assessment.Answer
		for i := 0; i < n; i++ {
			id := string(rune('a' + i))
			if i%2 == 0 {
				qs = append(qs, single(id, "o1", i+1, "o1", "o2"))
				as = append(as, ans(id, "o1"))
			} else {
				qs = append(qs, multiple(id, []string{"o1", "o3"}, i+1, "o1", "o2", "o3"))
				as = append(as, ans(id, "o3", "o1"))
			}
		}
		res, err := assessment.ScoreExam(assessment.Exam{ID: "e", Questions: qs}, as)
		require.NoError(t, err)
		assert.Equal(t, 100, res.Score, "n=%d", n)
	}
}

func TestLetterFor(t *testing.T) {
	tests := []struct {
		score *int
		want  assessment.Letter
	}{
		{score: intp(100), want: assessment.GradeA},
		{score: intp(90), want: assessment.GradeA},
		{score: intp(89), want: assessment.GradeB},
		{score: intp(80), want: assessment.GradeB},
		{score: intp(70), want: assessment.GradeC},
		{score: intp(60), want: assessment.GradeD},
		{score: intp(59), want: assessment.GradeF},
		{score: intp(0), want: assessment.GradeF},
		{score: nil, want: assessment.GradeF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, assessment.LetterFor(tt.score))
	}
}

func intp(v int) *int { return &v }
