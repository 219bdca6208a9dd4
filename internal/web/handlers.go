// internal/web/handlers.go - Users, tokens and checks CRUD
package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"watchtower/internal/store"
)

const minPasswordLength = 11

type UserRequest struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
	TOSAgreement bool   `json:"tosAgreement"`
}

type TokenRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type CheckRequest struct {
	Protocol       string `json:"protocol"`
	URL            string `json:"url"`
	Method         string `json:"method"`
	SuccessCodes   []int  `json:"successCodes"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// userView redacts the password hash before a user record leaves the API.
func userView(u store.User) gin.H {
	return gin.H{
		"firstName":    u.FirstName,
		"lastName":     u.LastName,
		"phone":        u.Phone,
		"tosAgreement": u.TOSAgreement,
		"checks":       u.Checks,
	}
}

func (s *Server) createUser(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password is too short"})
		return
	}

	user := store.User{
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Phone:          strings.TrimSpace(req.Phone),
		HashedPassword: s.hashPassword(req.Password),
		TOSAgreement:   req.TOSAgreement,
	}

	if err := user.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.Create(store.CollectionUsers, user.Phone, &user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A user with that phone number already exists"})
			return
		}
		logrus.WithError(err).Error("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": userView(user)})
}

func (s *Server) getUser(c *gin.Context) {
	phone := c.Param("phone")
	if phone != c.GetString(contextPhone) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Token does not match the requested user"})
		return
	}

	var user store.User
	if err := s.store.Read(store.CollectionUsers, phone, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		logrus.WithError(err).Error("Failed to read user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": userView(user)})
}

func (s *Server) updateUser(c *gin.Context) {
	phone := c.Param("phone")
	if phone != c.GetString(contextPhone) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Token does not match the requested user"})
		return
	}

	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.FirstName == "" && req.LastName == "" && req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields to update"})
		return
	}

	var user store.User
	if err := s.store.Read(store.CollectionUsers, phone, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		logrus.WithError(err).Error("Failed to read user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read user"})
		return
	}

	if req.FirstName != "" {
		user.FirstName = strings.TrimSpace(req.FirstName)
	}
	if req.LastName != "" {
		user.LastName = strings.TrimSpace(req.LastName)
	}
	if req.Password != "" {
		if len(strings.TrimSpace(req.Password)) < minPasswordLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password is too short"})
			return
		}
		user.HashedPassword = s.hashPassword(req.Password)
	}

	if err := s.store.Update(store.CollectionUsers, phone, &user); err != nil {
		logrus.WithError(err).Error("Failed to update user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": userView(user)})
}

// deleteUser removes the user record along with every check the user owns,
// keeping the user/check invariant intact.
func (s *Server) deleteUser(c *gin.Context) {
	phone := c.Param("phone")
	if phone != c.GetString(contextPhone) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Token does not match the requested user"})
		return
	}

	var user store.User
	if err := s.store.Read(store.CollectionUsers, phone, &user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		logrus.WithError(err).Error("Failed to read user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read user"})
		return
	}

	for _, checkID := range user.Checks {
		if err := s.store.Delete(store.CollectionChecks, checkID); err != nil && !errors.Is(err, store.ErrNotFound) {
			logrus.WithError(err).WithField("check", checkID).Error("Failed to delete user's check")
		}
		s.metrics.RemoveCheckState(checkID)
	}

	if err := s.store.Delete(store.CollectionUsers, phone); err != nil {
		logrus.WithError(err).Error("Failed to delete user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

func (s *Server) createToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user store.User
	if err := s.store.Read(store.CollectionUsers, strings.TrimSpace(req.Phone), &user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phone or password"})
		return
	}

	if !s.passwordMatches(req.Password, user.HashedPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid phone or password"})
		return
	}

	token := store.Token{
		ID:      uuid.New().String(),
		Phone:   user.Phone,
		Expires: time.Now().Add(s.config.Server.TokenTTL).UnixMilli(),
	}

	if err := s.store.Create(store.CollectionTokens, token.ID, &token); err != nil {
		logrus.WithError(err).Error("Failed to create token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": token})
}

func (s *Server) getToken(c *gin.Context) {
	var token store.Token
	if err := s.store.Read(store.CollectionTokens, c.Param("id"), &token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		logrus.WithError(err).Error("Failed to read token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": token})
}

func (s *Server) extendToken(c *gin.Context) {
	var token store.Token
	if err := s.store.Read(store.CollectionTokens, c.Param("id"), &token); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		logrus.WithError(err).Error("Failed to read token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read token"})
		return
	}

	if token.Expires < time.Now().UnixMilli() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token has already expired and cannot be extended"})
		return
	}

	token.Expires = time.Now().Add(s.config.Server.TokenTTL).UnixMilli()
	if err := s.store.Update(store.CollectionTokens, token.ID, &token); err != nil {
		logrus.WithError(err).Error("Failed to update token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": token})
}

func (s *Server) deleteToken(c *gin.Context) {
	if err := s.store.Delete(store.CollectionTokens, c.Param("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
			return
		}
		logrus.WithError(err).Error("Failed to delete token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Token deleted successfully"})
}

func (s *Server) createCheck(c *gin.Context) {
	phone := c.GetString(contextPhone)

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user store.User
	if err := s.store.Read(store.CollectionUsers, phone, &user); err != nil {
		logrus.WithError(err).Error("Failed to read user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read user"})
		return
	}

	if len(user.Checks) >= s.config.Store.MaxChecksPerUser {
		c.JSON(http.StatusBadRequest, gin.H{"error": "The user already has the maximum number of checks"})
		return
	}

	check := store.Check{
		ID:             store.NewCheckID(),
		UserPhone:      phone,
		Protocol:       strings.ToLower(req.Protocol),
		URL:            strings.TrimSpace(req.URL),
		Method:         strings.ToLower(req.Method),
		SuccessCodes:   req.SuccessCodes,
		TimeoutSeconds: req.TimeoutSeconds,
	}

	if err := check.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.Create(store.CollectionChecks, check.ID, &check); err != nil {
		logrus.WithError(err).Error("Failed to create check")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create check"})
		return
	}

	// Second, non-atomic write: a crash between the two leaves a check
	// record the owner's list does not reference.
	user.Checks = append(user.Checks, check.ID)
	if err := s.store.Update(store.CollectionUsers, phone, &user); err != nil {
		logrus.WithError(err).Error("Failed to update user's check list")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user's check list"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": check})
}

func (s *Server) getCheck(c *gin.Context) {
	check, ok := s.loadOwnedCheck(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": check})
}

func (s *Server) updateCheck(c *gin.Context) {
	check, ok := s.loadOwnedCheck(c)
	if !ok {
		return
	}

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Protocol == "" && req.URL == "" && req.Method == "" && len(req.SuccessCodes) == 0 && req.TimeoutSeconds == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fields to update"})
		return
	}

	if req.Protocol != "" {
		check.Protocol = strings.ToLower(req.Protocol)
	}
	if req.URL != "" {
		check.URL = strings.TrimSpace(req.URL)
	}
	if req.Method != "" {
		check.Method = strings.ToLower(req.Method)
	}
	if len(req.SuccessCodes) > 0 {
		check.SuccessCodes = req.SuccessCodes
	}
	if req.TimeoutSeconds > 0 {
		check.TimeoutSeconds = req.TimeoutSeconds
	}

	if err := check.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.Update(store.CollectionChecks, check.ID, &check); err != nil {
		logrus.WithError(err).Error("Failed to update check")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update check"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": check})
}

func (s *Server) deleteCheck(c *gin.Context) {
	check, ok := s.loadOwnedCheck(c)
	if !ok {
		return
	}

	if err := s.store.Delete(store.CollectionChecks, check.ID); err != nil {
		logrus.WithError(err).Error("Failed to delete check")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete check"})
		return
	}
	s.metrics.RemoveCheckState(check.ID)

	var user store.User
	if err := s.store.Read(store.CollectionUsers, check.UserPhone, &user); err == nil {
		kept := user.Checks[:0]
		for _, id := range user.Checks {
			if id != check.ID {
				kept = append(kept, id)
			}
		}
		user.Checks = kept
		if err := s.store.Update(store.CollectionUsers, check.UserPhone, &user); err != nil {
			logrus.WithError(err).Error("Failed to update user's check list")
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Check deleted successfully"})
}

// loadOwnedCheck reads the check in the id parameter and enforces that it
// belongs to the authenticated user. It writes the error response itself
// when returning ok=false.
func (s *Server) loadOwnedCheck(c *gin.Context) (store.Check, bool) {
	var check store.Check
	if err := s.store.Read(store.CollectionChecks, c.Param("id"), &check); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Check not found"})
			return check, false
		}
		logrus.WithError(err).Error("Failed to read check")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read check"})
		return check, false
	}

	if check.UserPhone != c.GetString(contextPhone) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Check does not belong to the authenticated user"})
		return check, false
	}

	return check, true
}
