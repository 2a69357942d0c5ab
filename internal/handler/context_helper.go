package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/syllabus-portal/internal/middleware"
	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actingTeacher resolves whose slot a teacher-scoped request targets. Teachers may only act for
// themselves; admins must name the teacher.
func actingTeacher(c *gin.Context, requested string) (string, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", appErrors.ErrUnauthorized
	}
	if claims.Role == models.RoleAdmin {
		if requested == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, "teacherId is required")
		}
		return requested, nil
	}
	if requested != "" && requested != claims.UserID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "teachers may only act for themselves")
	}
	return claims.UserID, nil
}
