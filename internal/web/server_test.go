package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"watchtower/internal/config"
	"watchtower/internal/metrics"
	"watchtower/internal/store"
)

var _ = Describe("API", func() {
	var (
		dataDir string
		st      store.Store
		server  *Server
	)

	do := func(method, path, token string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			ExpectWithOffset(1, json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		if token != "" {
			req.Header.Set("Token", token)
		}
		rec := httptest.NewRecorder()
		server.router.ServeHTTP(rec, req)
		return rec
	}

	decode := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var out map[string]interface{}
		ExpectWithOffset(1, json.Unmarshal(rec.Body.Bytes(), &out)).To(Succeed())
		return out
	}

	registerUser := func(phone string) {
		rec := do(http.MethodPost, "/api/users", "", gin.H{
			"firstName":    "Ada",
			"lastName":     "Lovelace",
			"phone":        phone,
			"password":     "correct-horse-battery",
			"tosAgreement": true,
		})
		ExpectWithOffset(1, rec.Code).To(Equal(http.StatusCreated))
	}

	loginUser := func(phone string) string {
		rec := do(http.MethodPost, "/api/tokens", "", gin.H{
			"phone":    phone,
			"password": "correct-horse-battery",
		})
		ExpectWithOffset(1, rec.Code).To(Equal(http.StatusCreated))
		data := decode(rec)["data"].(map[string]interface{})
		return data["id"].(string)
	}

	BeforeEach(func() {
		var err error
		dataDir, err = os.MkdirTemp("", "web-test-*")
		Expect(err).NotTo(HaveOccurred())

		st, err = store.NewFileStore(dataDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := &config.Config{}
		cfg.Server.HashingSecret = "test-secret"
		cfg.Server.TokenTTL = time.Hour
		cfg.Store.MaxChecksPerUser = 2

		server = NewServer(cfg, st, nil, metrics.NewCollector())
	})

	AfterEach(func() {
		os.RemoveAll(dataDir)
	})

	Describe("ping", func() {
		It("should answer ok", func() {
			rec := do(http.MethodGet, "/ping", "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("users", func() {
		It("should create a user and redact the password hash", func() {
			rec := do(http.MethodPost, "/api/users", "", gin.H{
				"firstName":    "Ada",
				"lastName":     "Lovelace",
				"phone":        "5551234567",
				"password":     "correct-horse-battery",
				"tosAgreement": true,
			})
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Body.String()).NotTo(ContainSubstring("hashedPassword"))

			var stored store.User
			Expect(st.Read(store.CollectionUsers, "5551234567", &stored)).To(Succeed())
			Expect(stored.HashedPassword).NotTo(BeEmpty())
			Expect(stored.HashedPassword).NotTo(Equal("correct-horse-battery"))
		})

		It("should reject a duplicate phone", func() {
			registerUser("5551234567")
			rec := do(http.MethodPost, "/api/users", "", gin.H{
				"firstName":    "Ada",
				"lastName":     "Lovelace",
				"phone":        "5551234567",
				"password":     "correct-horse-battery",
				"tosAgreement": true,
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("already exists"))
		})

		It("should reject a short password", func() {
			rec := do(http.MethodPost, "/api/users", "", gin.H{
				"firstName":    "Ada",
				"lastName":     "Lovelace",
				"phone":        "5551234567",
				"password":     "short",
				"tosAgreement": true,
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should require a token for reads", func() {
			registerUser("5551234567")
			rec := do(http.MethodGet, "/api/users/5551234567", "", nil)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("should refuse a token belonging to another user", func() {
			registerUser("5551234567")
			registerUser("5559876543")
			otherToken := loginUser("5559876543")

			rec := do(http.MethodGet, "/api/users/5551234567", otherToken, nil)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("should serve the owner's record", func() {
			registerUser("5551234567")
			token := loginUser("5551234567")

			rec := do(http.MethodGet, "/api/users/5551234567", token, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			data := decode(rec)["data"].(map[string]interface{})
			Expect(data["firstName"]).To(Equal("Ada"))
		})

		It("should delete the user's checks along with the user", func() {
			registerUser("5551234567")
			token := loginUser("5551234567")

			rec := do(http.MethodPost, "/api/checks", token, gin.H{
				"protocol":       "http",
				"url":            "example.com",
				"method":         "get",
				"successCodes":   []int{200},
				"timeoutSeconds": 3,
			})
			Expect(rec.Code).To(Equal(http.StatusCreated))
			checkID := decode(rec)["data"].(map[string]interface{})["id"].(string)

			rec = do(http.MethodDelete, "/api/users/5551234567", token, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var check store.Check
			Expect(st.Read(store.CollectionChecks, checkID, &check)).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("tokens", func() {
		BeforeEach(func() {
			registerUser("5551234567")
		})

		It("should reject a wrong password", func() {
			rec := do(http.MethodPost, "/api/tokens", "", gin.H{
				"phone":    "5551234567",
				"password": "not-the-password",
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should issue a token with a future expiry", func() {
			rec := do(http.MethodPost, "/api/tokens", "", gin.H{
				"phone":    "5551234567",
				"password": "correct-horse-battery",
			})
			Expect(rec.Code).To(Equal(http.StatusCreated))

			data := decode(rec)["data"].(map[string]interface{})
			Expect(data["expires"]).To(BeNumerically(">", time.Now().UnixMilli()))
		})

		It("should extend an unexpired token", func() {
			token := loginUser("5551234567")

			var before store.Token
			Expect(st.Read(store.CollectionTokens, token, &before)).To(Succeed())

			rec := do(http.MethodPut, "/api/tokens/"+token, "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var after store.Token
			Expect(st.Read(store.CollectionTokens, token, &after)).To(Succeed())
			Expect(after.Expires).To(BeNumerically(">=", before.Expires))
		})

		It("should refuse to extend an expired token", func() {
			expired := store.Token{ID: "11111111-2222-3333-4444-555555555555", Phone: "5551234567", Expires: 1}
			Expect(st.Create(store.CollectionTokens, expired.ID, &expired)).To(Succeed())

			rec := do(http.MethodPut, "/api/tokens/"+expired.ID, "", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should refuse authentication with an expired token", func() {
			expired := store.Token{ID: "11111111-2222-3333-4444-555555555555", Phone: "5551234567", Expires: 1}
			Expect(st.Create(store.CollectionTokens, expired.ID, &expired)).To(Succeed())

			rec := do(http.MethodGet, "/api/users/5551234567", expired.ID, nil)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
			Expect(rec.Body.String()).To(ContainSubstring("expired"))
		})

		It("should delete a token", func() {
			token := loginUser("5551234567")

			rec := do(http.MethodDelete, "/api/tokens/"+token, "", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			rec = do(http.MethodGet, "/api/users/5551234567", token, nil)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})
	})

	Describe("checks", func() {
		var token string

		newCheckBody := func() gin.H {
			return gin.H{
				"protocol":       "https",
				"url":            "example.com/health",
				"method":         "get",
				"successCodes":   []int{200, 201},
				"timeoutSeconds": 3,
			}
		}

		BeforeEach(func() {
			registerUser("5551234567")
			token = loginUser("5551234567")
		})

		It("should create a check and record it on the owner", func() {
			rec := do(http.MethodPost, "/api/checks", token, newCheckBody())
			Expect(rec.Code).To(Equal(http.StatusCreated))

			data := decode(rec)["data"].(map[string]interface{})
			Expect(data["id"]).To(MatchRegexp(`^[a-z0-9]{20}$`))
			Expect(data["state"]).To(BeNil())

			var user store.User
			Expect(st.Read(store.CollectionUsers, "5551234567", &user)).To(Succeed())
			Expect(user.Checks).To(ContainElement(data["id"].(string)))
		})

		It("should reject an invalid protocol", func() {
			body := newCheckBody()
			body["protocol"] = "ftp"
			rec := do(http.MethodPost, "/api/checks", token, body)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should cap the number of checks per user", func() {
			Expect(do(http.MethodPost, "/api/checks", token, newCheckBody()).Code).To(Equal(http.StatusCreated))
			Expect(do(http.MethodPost, "/api/checks", token, newCheckBody()).Code).To(Equal(http.StatusCreated))

			rec := do(http.MethodPost, "/api/checks", token, newCheckBody())
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
			Expect(rec.Body.String()).To(ContainSubstring("maximum number of checks"))
		})

		It("should refuse access to a check owned by someone else", func() {
			rec := do(http.MethodPost, "/api/checks", token, newCheckBody())
			Expect(rec.Code).To(Equal(http.StatusCreated))
			checkID := decode(rec)["data"].(map[string]interface{})["id"].(string)

			registerUser("5559876543")
			otherToken := loginUser("5559876543")

			rec = do(http.MethodGet, "/api/checks/"+checkID, otherToken, nil)
			Expect(rec.Code).To(Equal(http.StatusForbidden))
		})

		It("should apply a partial update and re-validate", func() {
			rec := do(http.MethodPost, "/api/checks", token, newCheckBody())
			checkID := decode(rec)["data"].(map[string]interface{})["id"].(string)

			rec = do(http.MethodPut, "/api/checks/"+checkID, token, gin.H{"timeoutSeconds": 5})
			Expect(rec.Code).To(Equal(http.StatusOK))

			var check store.Check
			Expect(st.Read(store.CollectionChecks, checkID, &check)).To(Succeed())
			Expect(check.TimeoutSeconds).To(Equal(5))
			Expect(check.URL).To(Equal("example.com/health"))
		})

		It("should reject an update that breaks validation", func() {
			rec := do(http.MethodPost, "/api/checks", token, newCheckBody())
			checkID := decode(rec)["data"].(map[string]interface{})["id"].(string)

			rec = do(http.MethodPut, "/api/checks/"+checkID, token, gin.H{"timeoutSeconds": 9})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("should delete a check and unlink it from the owner", func() {
			rec := do(http.MethodPost, "/api/checks", token, newCheckBody())
			checkID := decode(rec)["data"].(map[string]interface{})["id"].(string)

			rec = do(http.MethodDelete, "/api/checks/"+checkID, token, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var user store.User
			Expect(st.Read(store.CollectionUsers, "5551234567", &user)).To(Succeed())
			Expect(user.Checks).NotTo(ContainElement(checkID))
		})

		It("should return not found for an unknown check", func() {
			rec := do(http.MethodGet, "/api/checks/aaaaaaaaaaaaaaaaaaaa", token, nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})
})
