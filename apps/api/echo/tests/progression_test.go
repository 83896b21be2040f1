package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cultusedu/cultus/core/product"
	"github.com/cultusedu/cultus/core/progression"
	"github.com/cultusedu/cultus/core/user"
	testutil "github.com/cultusedu/cultus/tests"
)

func intPtr(i int) *int { return &i }

func Test_progressionApi_enroll(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "heroas", "hero@test.cd", "", []string{user.RoleStudent}, true)
	staff := testutil.CreateUser(t, usrRepo, "Staff", "staffer", "staff@test.cd", "", []string{user.RoleStaff}, true)
	prod := testutil.CreateProduct(t, prodRepo, "Job Readiness")
	testutil.CreateModule(t, prodRepo, prod.ID, "Quiz 1", product.ModuleTypeAssessment, 1)

	staffToken := getToken(t, staff)
	enrollBody := marchallObj(t, progression.NewEnrollment{StudentID: student.ID})

	tests := []httpTest{
		{name: "Auth required", path: "/v1/products/" + prod.ID + "/enroll", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Staff required", path: "/v1/products/" + prod.ID + "/enroll", token: getToken(t, student),
			body: enrollBody, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "required fields", path: "/v1/products/" + prod.ID + "/enroll", token: staffToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_id": "this field is required"}),
		},
		{
			name: "unknown product", path: "/v1/products/lol/enroll", token: staffToken, body: enrollBody,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "product not found"}),
		},
		{
			name: "unknown student", path: "/v1/products/" + prod.ID + "/enroll", token: staffToken,
			body:     marchallObj(t, progression.NewEnrollment{StudentID: "lol"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
		{
			name: "Enrolled", path: "/v1/products/" + prod.ID + "/enroll", token: staffToken,
			body: marchallObj(t, progression.NewEnrollment{StudentID: student.ID, BackgroundType: "computer_science"}),
			wantCode: http.StatusCreated,
		},
		{
			name: "Already enrolled", path: "/v1/products/" + prod.ID + "/enroll", token: staffToken, body: enrollBody,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "student is already enrolled in this product"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// created timestamps cannot be guessed
			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var st progression.State
				if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if st.StudentID != student.ID || st.ProductID != prod.ID {
					t.Errorf("failed! unexpected state %+v", st)
				}
				if st.Tier != progression.TierNone || st.StarLevel != 0 {
					t.Errorf("failed! new state should start at tier none / 0 stars, got %v / %v", st.Tier, st.StarLevel)
				}
				if st.BackgroundType != "computer_science" {
					t.Errorf("failed! background type = %v; want computer_science", st.BackgroundType)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_progressionApi_submissions(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "heroas", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, usrRepo, "Nemesis", "nemesis", "nem@test.cd", "", []string{user.RoleStudent}, true)
	staff := testutil.CreateUser(t, usrRepo, "Staff", "staffer", "staff@test.cd", "", []string{user.RoleStaff}, true)

	prod := testutil.CreateProduct(t, prodRepo, "Job Readiness")
	course := testutil.CreateModule(t, prodRepo, prod.ID, "Intro Course", product.ModuleTypeCourse, 1)
	quiz1 := testutil.CreateModule(t, prodRepo, prod.ID, "Quiz 1", product.ModuleTypeAssessment, 2)
	quiz2 := testutil.CreateModule(t, prodRepo, prod.ID, "Quiz 2", product.ModuleTypeAssessment, 3)
	testutil.Enroll(t, progSvc, student.ID, prod.ID)

	// a product without assessments cannot award tiers
	degenerate := testutil.CreateProduct(t, prodRepo, "Workshop Only")
	lecture := testutil.CreateModule(t, prodRepo, degenerate.ID, "Lecture", product.ModuleTypeCourse, 1)
	testutil.Enroll(t, progSvc, student.ID, degenerate.ID)

	studentToken := getToken(t, student)
	submit := func(modID string, status progression.ModuleStatus, score *int) []byte {
		return marchallObj(t, progression.NewSubmission{StudentID: student.ID, ModuleID: modID, Status: status, Score: score})
	}
	reqMsg := "this field is required"
	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "required fields", token: studentToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": reqMsg, "module_id": reqMsg, "status": reqMsg}),
		},
		{
			name: "invalid status", token: studentToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, progression.NewSubmission{StudentID: student.ID, ModuleID: quiz1.ID, Status: "done"}),
			wantData: marchallObj(t, map[string]string{"status": "invalid module status"}),
		},
		{
			name: "students submit only for themselves", token: getToken(t, other), wantCode: http.StatusForbidden,
			body:     submit(quiz1.ID, progression.StatusCompleted, intPtr(50)),
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown module", token: studentToken, wantCode: http.StatusNotFound,
			body:     marchallObj(t, progression.NewSubmission{StudentID: student.ID, ModuleID: "lol", Status: progression.StatusCompleted}),
			wantData: marchallObj(t, httpErr{Error: "module not found"}),
		},
		{
			name: "not enrolled", token: getToken(t, staff), wantCode: http.StatusNotFound,
			body:     marchallObj(t, progression.NewSubmission{StudentID: other.ID, ModuleID: quiz1.ID, Status: progression.StatusInProgress}),
			wantData: marchallObj(t, httpErr{Error: "student is not enrolled in this product"}),
		},
		{
			name: "product without assessments", token: studentToken, wantCode: http.StatusConflict,
			body:     submit(lecture.ID, progression.StatusCompleted, nil),
			wantData: marchallObj(t, httpErr{Error: "product has no assessment modules"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/submissions"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	decode := func(t *testing.T, body []byte) progression.SubmissionOutcome {
		t.Helper()
		var outcome progression.SubmissionOutcome
		if err := json.Unmarshal(body, &outcome); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		return outcome
	}

	t.Run("first assessment completed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/submissions", studentToken, submit(quiz1.ID, progression.StatusCompleted, intPtr(90)))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		outcome := decode(t, rec.Body.Bytes())

		// one of two assessments done: no tier, no stars yet
		if outcome.TierOutcome.Tier != progression.TierNone || outcome.TierOutcome.AllComplete {
			t.Errorf("failed! tier outcome = %+v; want incomplete tier none", outcome.TierOutcome)
		}
		if outcome.TierOutcome.CompletedCount != 1 || outcome.TierOutcome.TotalCount != 2 {
			t.Errorf("failed! counts = %d/%d; want 1/2", outcome.TierOutcome.CompletedCount, outcome.TierOutcome.TotalCount)
		}
		if outcome.StarLevel != 0 {
			t.Errorf("failed! star level = %d; want 0", outcome.StarLevel)
		}
	})

	t.Run("all assessments completed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/submissions", studentToken, submit(quiz2.ID, progression.StatusCompleted, intPtr(80)))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		outcome := decode(t, rec.Body.Bytes())

		// mean of 90 and 80 is 85, the gold cut point
		if outcome.TierOutcome.Tier != progression.TierGold || !outcome.TierOutcome.AllComplete {
			t.Errorf("failed! tier outcome = %+v; want complete gold", outcome.TierOutcome)
		}
		if outcome.TierOutcome.AverageScore == nil || *outcome.TierOutcome.AverageScore != 85 {
			t.Errorf("failed! average = %v; want 85", outcome.TierOutcome.AverageScore)
		}
		if outcome.State.Tier != progression.TierGold {
			t.Errorf("failed! state tier = %v; want gold", outcome.State.Tier)
		}
		// assessments category done, courses category still open
		if outcome.StarLevel != 1 {
			t.Errorf("failed! star level = %d; want 1", outcome.StarLevel)
		}
	})

	t.Run("staff submit on behalf of a student", func(t *testing.T) {
		body := marchallObj(t, progression.NewSubmission{StudentID: student.ID, ModuleID: course.ID, Status: progression.StatusCompleted})
		req, rec := newAuthRequest(http.MethodPost, "/v1/submissions", getToken(t, staff), body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		outcome := decode(t, rec.Body.Bytes())

		// course category now complete as well
		if outcome.StarLevel != 2 {
			t.Errorf("failed! star level = %d; want 2", outcome.StarLevel)
		}
		if outcome.State.Tier != progression.TierGold {
			t.Errorf("failed! state tier = %v; want gold", outcome.State.Tier)
		}
	})
}

func Test_progressionApi_progress(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "heroas", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, usrRepo, "Nemesis", "nemesis", "nem@test.cd", "", []string{user.RoleStudent}, true)
	staff := testutil.CreateUser(t, usrRepo, "Staff", "staffer", "staff@test.cd", "", []string{user.RoleStaff}, true)

	prod := testutil.CreateProduct(t, prodRepo, "Job Readiness")
	testutil.CreateModule(t, prodRepo, prod.ID, "Intro Course", product.ModuleTypeCourse, 1)
	quiz := testutil.CreateModule(t, prodRepo, prod.ID, "Quiz 1", product.ModuleTypeAssessment, 2)
	testutil.Enroll(t, progSvc, student.ID, prod.ID)

	path := "/v1/students/" + student.ID + "/products/" + prod.ID + "/progress"
	tests := []httpTest{
		{name: "Auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "hidden from other students", path: path, token: getToken(t, other),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "not enrolled", path: "/v1/students/" + other.ID + "/products/" + prod.ID + "/progress", token: getToken(t, staff),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student is not enrolled in this product"}),
		},
		{name: "self", path: path, token: getToken(t, student), wantCode: http.StatusOK},
		{name: "staff", path: path, token: getToken(t, staff), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var view progression.ProgressView
				if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if view.State.StudentID != student.ID || view.State.ProductID != prod.ID {
					t.Errorf("failed! unexpected state %+v", view.State)
				}
				if len(view.Modules) != 2 {
					t.Errorf("failed! len(modules) = %d; want 2", len(view.Modules))
				}
				for _, row := range view.Modules {
					if row.Module.ID == quiz.ID && row.Result.Status != progression.StatusNotStarted {
						t.Errorf("failed! untouched module status = %v; want not_started", row.Result.Status)
					}
				}
				if view.Unlocked[progression.CategoryInitialAssessments] {
					t.Error("failed! assessments category should not be complete yet")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_progressionApi_recompute(t *testing.T) {
	app := setup(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "heroas", "hero@test.cd", "", []string{user.RoleStudent}, true)
	staff := testutil.CreateUser(t, usrRepo, "Staff", "staffer", "staff@test.cd", "", []string{user.RoleStaff}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admino", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	prod := testutil.CreateProduct(t, prodRepo, "Job Readiness")
	quiz := testutil.CreateModule(t, prodRepo, prod.ID, "Quiz 1", product.ModuleTypeAssessment, 1)
	testutil.Enroll(t, progSvc, student.ID, prod.ID)

	req, rec := newAuthRequest(http.MethodPost, "/v1/submissions", getToken(t, student),
		marchallObj(t, progression.NewSubmission{StudentID: student.ID, ModuleID: quiz.ID, Status: progression.StatusCompleted, Score: intPtr(70)}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("seeding submission failed! code = %v; body %s", rec.Code, rec.Body.String())
	}

	path := "/v1/students/" + student.ID + "/products/" + prod.ID + "/recompute"
	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "Auth required", path: path, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: path, token: getToken(t, staff),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "not enrolled", path: "/v1/students/lol/products/" + prod.ID + "/recompute", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student is not enrolled in this product"}),
		},
		{name: "Recomputed", path: path, token: adminToken, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
				}
				var outcome progression.SubmissionOutcome
				if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				// rerunning the engine over unchanged results is a no-op
				if outcome.TierOutcome.Tier != progression.TierSilver || outcome.State.Tier != progression.TierSilver {
					t.Errorf("failed! tier = %v / state %v; want silver", outcome.TierOutcome.Tier, outcome.State.Tier)
				}
				if outcome.StarLevel != 1 {
					t.Errorf("failed! star level = %d; want 1", outcome.StarLevel)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}
