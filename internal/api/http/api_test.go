package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	api "github.com/mind-engage/iqscore/internal/api/http"
	auth "github.com/mind-engage/iqscore/internal/auth/middleware"
	"github.com/mind-engage/iqscore/internal/db"
	"github.com/mind-engage/iqscore/internal/eventlog"
	"github.com/mind-engage/iqscore/internal/handoff"
	"github.com/mind-engage/iqscore/internal/questions"
	"github.com/mind-engage/iqscore/internal/quiz"
	"github.com/mind-engage/iqscore/internal/scoring"
	"github.com/mind-engage/iqscore/internal/session"
)

type env struct {
	srv     *httptest.Server
	bank    *questions.Bank
	results handoff.Store
}

func newEnv(t *testing.T, name string) *env {
	t.Helper()
	ctx := context.Background()
	sqldb, err := db.Open(ctx, db.DriverSQLite, "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { sqldb.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	bank := questions.Default()
	events := eventlog.NewRepo(sqldb, "test")
	store := session.WithEvents(session.NewSQLStore(sqldb), events)
	results := handoff.NewMemoryStore(time.Hour)
	reg := quiz.NewRegistry(bank, questions.DefaultEngagement(), store, results, quiz.Options{
		TickInterval: time.Hour, // no timeouts during the test
	})
	t.Cleanup(func() { _ = reg.Shutdown(context.Background()) })

	s := &api.Server{
		Bank:          bank,
		Sessions:      store,
		Quizzes:       reg,
		Results:       results,
		Auth:          auth.NewAuthService("test-secret", time.Hour),
		Events:        events,
		AdminUser:     "admin",
		AdminPassHash: string(hash),
		CORSOrigins:   []string{"*"},
		EnableMetrics: true,
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &env{srv: srv, bank: bank, results: results}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		buf, _ := json.Marshal(b)
		rd = bytes.NewReader(buf)
	}
	req, _ := http.NewRequest(method, e.srv.URL+path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func (e *env) newSession(t *testing.T) (id, token string) {
	t.Helper()
	resp, body := e.do(t, "POST", "/api/session", "", map[string]string{"utm_source": "ads"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: %d %s", resp.StatusCode, body)
	}
	var out struct {
		SessionID string `json:"sessionId"`
		Token     string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.SessionID == "" || out.Token == "" {
		t.Fatalf("create session body %s: %v", body, err)
	}
	return out.SessionID, out.Token
}

func (e *env) adminToken(t *testing.T) string {
	t.Helper()
	resp, body := e.do(t, "POST", "/auth/login", "", map[string]string{"username": "admin", "password": "s3cret"})
	if resp.StatusCode != 200 {
		t.Fatalf("login: %d %s", resp.StatusCode, body)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	_ = json.Unmarshal(body, &out)
	return out.AccessToken
}

type quizResp struct {
	Accepted bool      `json:"accepted"`
	View     quiz.View `json:"view"`
}

func decodeQuiz(t *testing.T, body []byte) quizResp {
	t.Helper()
	var r quizResp
	if err := json.Unmarshal(body, &r); err != nil {
		t.Fatalf("decode quiz response %s: %v", body, err)
	}
	return r
}

func TestFullQuizFlow(t *testing.T) {
	e := newEnv(t, "api_flow")
	id, tok := e.newSession(t)
	base := "/api/quiz/" + id

	resp, body := e.do(t, "POST", base+"/start", tok, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	v := decodeQuiz(t, body).View
	if v.Phase != quiz.AwaitingAnswer || v.Index != 0 || v.Total != e.bank.Len() {
		t.Fatalf("start view = %+v", v)
	}

	// starting again returns the running driver
	resp, _ = e.do(t, "POST", base+"/start", tok, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restart status = %d", resp.StatusCode)
	}

	resp, _ = e.do(t, "POST", base+"/answer", tok, `{"answer":"not an index"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad shape status = %d", resp.StatusCode)
	}

	for steps := 0; v.Phase != quiz.Complete; steps++ {
		if steps > 3*e.bank.Len() {
			t.Fatalf("quiz did not complete, view = %+v", v)
		}
		switch v.Phase {
		case quiz.Interstitial:
			resp, body = e.do(t, "POST", base+"/continue", tok, nil)
		case quiz.AwaitingAnswer:
			key := questions.EncodeResponse(e.bank.Question(v.Index).Key())
			resp, body = e.do(t, "POST", base+"/answer", tok, map[string]json.RawMessage{"answer": key})
		default:
			resp, body = e.do(t, "GET", base, tok, nil)
		}
		if resp.StatusCode != 200 {
			t.Fatalf("step %d: %d %s", steps, resp.StatusCode, body)
		}
		r := decodeQuiz(t, body)
		if !r.Accepted && r.View.Phase != quiz.Transitioning {
			t.Fatalf("step %d not accepted: %+v", steps, r.View)
		}
		v = r.View
	}
	want := scoring.Score(e.bank.Len(), e.bank.Len())
	if v.Result == nil || *v.Result != want || v.Correct == nil || *v.Correct != e.bank.Len() {
		t.Fatalf("final view = %+v", v)
	}

	resp, body = e.do(t, "GET", "/api/results/"+id, tok, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("results: %d %s", resp.StatusCode, body)
	}
	var res handoff.Results
	_ = json.Unmarshal(body, &res)
	if res.IQScore != want.IQ || res.Percentile != want.Percentile || res.Score != e.bank.Len() || len(res.Answers) != e.bank.Len() {
		t.Fatalf("results = %+v", res)
	}

	resp, body = e.do(t, "GET", "/api/results/"+id+"/report", tok, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("report: %d %s", resp.StatusCode, body)
	}
	var rep scoring.Report
	_ = json.Unmarshal(body, &rep)
	if rep.Correct != e.bank.Len() || rep.Classification != scoring.Classify(want.IQ) || len(rep.Categories) == 0 {
		t.Fatalf("report = %+v", rep)
	}

	resp, _ = e.do(t, "POST", "/api/session/"+id+"/email", tok, map[string]string{"email": "nope"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad email status = %d", resp.StatusCode)
	}
	resp, _ = e.do(t, "POST", "/api/session/"+id+"/email", tok, map[string]string{"email": "a@example.com"})
	if resp.StatusCode != 200 {
		t.Fatalf("email status = %d", resp.StatusCode)
	}

	resp, body = e.do(t, "GET", "/api/session/"+id, tok, nil)
	var rec session.Record
	_ = json.Unmarshal(body, &rec)
	if resp.StatusCode != 200 || !rec.Completed() || rec.Email != "a@example.com" || rec.Meta.UTMSource != "ads" {
		t.Fatalf("session: %d %+v", resp.StatusCode, rec)
	}

	// a finished attempt cannot be restarted
	resp, _ = e.do(t, "POST", base+"/start", tok, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("start after completion = %d", resp.StatusCode)
	}

	admin := e.adminToken(t)
	resp, body = e.do(t, "GET", "/api/admin/sessions/"+id+"/events", admin, nil)
	var evs []eventlog.Event
	_ = json.Unmarshal(body, &evs)
	if resp.StatusCode != 200 || len(evs) != 3 {
		t.Fatalf("events: %d %s", resp.StatusCode, body)
	}
	if evs[0].Type != eventlog.SessionCreated || evs[1].Type != eventlog.QuizCompleted || evs[2].Type != eventlog.EmailCaptured {
		t.Fatalf("event order = %+v", evs)
	}
}

func TestAccessControl(t *testing.T) {
	e := newEnv(t, "api_access")
	id, tok := e.newSession(t)
	other, otherTok := e.newSession(t)

	cases := []struct {
		method, path, token string
		want                int
	}{
		{"GET", "/api/session/" + id, "", http.StatusUnauthorized},
		{"GET", "/api/session/" + id, tok, 200},
		{"GET", "/api/session/" + id, otherTok, http.StatusForbidden},
		{"POST", "/api/quiz/" + id + "/start", otherTok, http.StatusForbidden},
		{"GET", "/api/results/" + other, tok, http.StatusForbidden},
		{"GET", "/api/admin/sessions", tok, http.StatusForbidden},
		{"GET", "/api/admin/stats", tok, http.StatusForbidden},
		{"GET", "/api/quiz/" + id, tok, http.StatusNotFound},
		{"GET", "/api/results/" + id, tok, http.StatusNotFound},
		{"GET", "/api/questions", "", 200},
		{"GET", "/healthz", "", 200},
		{"GET", "/readyz", "", 200},
		{"GET", "/metrics", "", 200},
	}
	for _, c := range cases {
		resp, body := e.do(t, c.method, c.path, c.token, nil)
		if resp.StatusCode != c.want {
			t.Errorf("%s %s: status %d, want %d (%s)", c.method, c.path, resp.StatusCode, c.want, body)
		}
	}

	admin := e.adminToken(t)
	resp, _ := e.do(t, "GET", "/api/session/"+id, admin, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("admin session view = %d", resp.StatusCode)
	}
	resp, _ = e.do(t, "POST", "/api/quiz/"+id+"/start", admin, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("admin took a quiz: %d", resp.StatusCode)
	}

	resp, body := e.do(t, "GET", "/api/admin/sessions?completed=false&limit=10", admin, nil)
	var list struct {
		Items []session.Record `json:"items"`
	}
	_ = json.Unmarshal(body, &list)
	if resp.StatusCode != 200 || len(list.Items) != 2 {
		t.Fatalf("list: %d %s", resp.StatusCode, body)
	}
	resp, _ = e.do(t, "GET", "/api/admin/sessions?completed=maybe", admin, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad filter status = %d", resp.StatusCode)
	}

	resp, _ = e.do(t, "POST", "/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d", resp.StatusCode)
	}
}

func TestQuestionsHideKeys(t *testing.T) {
	e := newEnv(t, "api_questions")
	resp, body := e.do(t, "GET", "/api/questions", "", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "correct") || strings.Contains(string(body), "tolerance") {
		t.Fatalf("answer keys leaked: %s", body)
	}
	var out struct {
		Total     int                        `json:"total"`
		Questions []questions.PublicQuestion `json:"questions"`
	}
	_ = json.Unmarshal(body, &out)
	if out.Total != e.bank.Len() || len(out.Questions) != e.bank.Len() {
		t.Fatalf("catalog = %d/%d", out.Total, len(out.Questions))
	}
}

func TestPutRegradesClientAnswers(t *testing.T) {
	e := newEnv(t, "api_put")
	id, tok := e.newSession(t)

	// every answer claims to be correct; only the first actually is
	var answers []json.RawMessage
	for i := 0; i < e.bank.Len(); i++ {
		q := e.bank.Question(i)
		sel := json.RawMessage("null")
		if i == 0 {
			sel = questions.EncodeResponse(q.Key())
		}
		a, _ := json.Marshal(map[string]any{
			"questionId":     q.ID,
			"selectedAnswer": sel,
			"correct":        true,
			"timeSpent":      3,
		})
		answers = append(answers, a)
	}

	resp, body := e.do(t, "PUT", "/api/session/"+id, tok, map[string]any{
		"currentQuestion": 2,
		"answers":         answers[:2],
	})
	if resp.StatusCode != 200 {
		t.Fatalf("progress put: %d %s", resp.StatusCode, body)
	}

	// the progress index must match the answers
	for _, cur := range []int{999, 1, 3} {
		resp, _ = e.do(t, "PUT", "/api/session/"+id, tok, map[string]any{
			"currentQuestion": cur,
			"answers":         answers[:2],
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("currentQuestion %d with 2 answers: status %d", cur, resp.StatusCode)
		}
	}
	resp, _ = e.do(t, "PUT", "/api/session/"+id, tok, map[string]any{"currentQuestion": 5})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("currentQuestion beyond stored answers: status %d", resp.StatusCode)
	}
	resp, body = e.do(t, "GET", "/api/session/"+id, tok, nil)
	var stored session.Record
	_ = json.Unmarshal(body, &stored)
	if stored.CurrentQuestion != 2 || len(stored.Answers) != 2 {
		t.Fatalf("stored progress = %d/%d", stored.CurrentQuestion, len(stored.Answers))
	}

	resp, body = e.do(t, "PUT", "/api/session/"+id, tok, map[string]any{
		"answers":   answers,
		"completed": true,
		"iqScore":   145,
	})
	if resp.StatusCode != 200 {
		t.Fatalf("completion put: %d %s", resp.StatusCode, body)
	}

	want := scoring.Score(1, e.bank.Len())
	resp, body = e.do(t, "GET", "/api/results/"+id, tok, nil)
	var res handoff.Results
	_ = json.Unmarshal(body, &res)
	if resp.StatusCode != 200 || res.Score != 1 || res.IQScore != want.IQ || res.Percentile != want.Percentile {
		t.Fatalf("results: %d %+v", resp.StatusCode, res)
	}

	resp, _ = e.do(t, "PUT", "/api/session/"+id, tok, map[string]any{"completed": true})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second completion = %d", resp.StatusCode)
	}
	resp, _ = e.do(t, "PUT", "/api/session/"+id, tok, map[string]any{"email": "x@example.com"})
	if resp.StatusCode != 200 {
		t.Fatalf("email after completion = %d", resp.StatusCode)
	}
}

func TestResumeFromStoredProgress(t *testing.T) {
	e := newEnv(t, "api_resume")
	id, tok := e.newSession(t)

	q0 := e.bank.Question(0)
	a, _ := json.Marshal(map[string]any{
		"questionId":     q0.ID,
		"selectedAnswer": questions.EncodeResponse(q0.Key()),
		"timeSpent":      4,
	})
	resp, body := e.do(t, "PUT", "/api/session/"+id, tok, map[string]any{"answers": []json.RawMessage{a}})
	if resp.StatusCode != 200 {
		t.Fatalf("put: %d %s", resp.StatusCode, body)
	}

	resp, body = e.do(t, "POST", "/api/quiz/"+id+"/start", tok, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	v := decodeQuiz(t, body).View
	if v.Index != 1 || v.Answered != 1 || v.Streak != 1 {
		t.Fatalf("resumed view = %+v", v)
	}

	// a live driver owns progress
	resp, _ = e.do(t, "PUT", "/api/session/"+id, tok, map[string]any{"currentQuestion": 0})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("put during quiz = %d", resp.StatusCode)
	}
}

func TestReportKeepsIssuedResult(t *testing.T) {
	e := newEnv(t, "api_report")
	id, tok := e.newSession(t)

	// stored answers claim correctness that the current keys do not support
	var answers []questions.Answer
	for i := 0; i < e.bank.Len(); i++ {
		answers = append(answers, questions.Answer{
			QuestionID: e.bank.Question(i).ID,
			Selected:   questions.NoAnswer{},
			Correct:    true,
			TimeSpent:  2,
		})
	}
	issued := scoring.Score(e.bank.Len(), e.bank.Len())
	err := e.results.Put(context.Background(), handoff.Results{
		SessionID:  id,
		Score:      e.bank.Len(),
		Total:      e.bank.Len(),
		IQScore:    issued.IQ,
		Percentile: issued.Percentile,
		Answers:    answers,
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	resp, body := e.do(t, "GET", "/api/results/"+id+"/report", tok, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("report: %d %s", resp.StatusCode, body)
	}
	var rep scoring.Report
	_ = json.Unmarshal(body, &rep)
	if rep.Result != issued || rep.Correct != e.bank.Len() || rep.Total != e.bank.Len() {
		t.Fatalf("report %+v/%d/%d disagrees with issued %+v", rep.Result, rep.Correct, rep.Total, issued)
	}
	if rep.Classification != scoring.Classify(issued.IQ) || rep.LongestStreak != e.bank.Len() {
		t.Fatalf("report = %+v", rep)
	}
}

func TestStartCompletesFullyAnsweredSession(t *testing.T) {
	e := newEnv(t, "api_unfinished")
	id, tok := e.newSession(t)

	// every answer persisted, completion never recorded
	var answers []json.RawMessage
	for i := 0; i < e.bank.Len(); i++ {
		q := e.bank.Question(i)
		sel := json.RawMessage("null")
		if i < 3 {
			sel = questions.EncodeResponse(q.Key())
		}
		a, _ := json.Marshal(map[string]any{"questionId": q.ID, "selectedAnswer": sel, "timeSpent": 1})
		answers = append(answers, a)
	}
	resp, body := e.do(t, "PUT", "/api/session/"+id, tok, map[string]any{"answers": answers})
	if resp.StatusCode != 200 {
		t.Fatalf("put: %d %s", resp.StatusCode, body)
	}

	resp, body = e.do(t, "POST", "/api/quiz/"+id+"/start", tok, nil)
	if resp.StatusCode != 200 {
		t.Fatalf("start: %d %s", resp.StatusCode, body)
	}
	want := scoring.Score(3, e.bank.Len())
	v := decodeQuiz(t, body).View
	if v.Phase != quiz.Complete || v.Result == nil || *v.Result != want || v.Correct == nil || *v.Correct != 3 {
		t.Fatalf("start view = %+v", v)
	}

	resp, body = e.do(t, "GET", "/api/results/"+id, tok, nil)
	var res handoff.Results
	_ = json.Unmarshal(body, &res)
	if resp.StatusCode != 200 || res.Score != 3 || res.IQScore != want.IQ {
		t.Fatalf("results: %d %+v", resp.StatusCode, res)
	}
	resp, _ = e.do(t, "POST", "/api/quiz/"+id+"/start", tok, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second start = %d", resp.StatusCode)
	}
}
