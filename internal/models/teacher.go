package models

import "strings"

// ClassAssignment is one class-section-subject tuple a teacher is responsible for.
type ClassAssignment struct {
	ClassLevel string `json:"classLevel" validate:"required"`
	Section    string `json:"section" validate:"required"`
	Subject    string `json:"subject" validate:"required"`
}

// Key renders the tuple as a stable lookup key.
func (a ClassAssignment) Key() string {
	return strings.ToUpper(strings.TrimSpace(a.ClassLevel)) + "|" +
		strings.ToUpper(strings.TrimSpace(a.Section)) + "|" +
		strings.ToLower(strings.TrimSpace(a.Subject))
}

// Teacher represents a faculty registry entry.
type Teacher struct {
	ID             string            `json:"id" validate:"required"`
	Email          string            `json:"email" validate:"required,email"`
	Name           string            `json:"name" validate:"required"`
	WhatsApp       string            `json:"whatsapp,omitempty"`
	Assignments    []ClassAssignment `json:"assignments" validate:"dive"`
	ClassTeacherOf *ClassAssignment  `json:"classTeacher,omitempty"`
}

// IsClassTeacher reports whether the teacher carries a homeroom designation.
func (t Teacher) IsClassTeacher() bool {
	return t.ClassTeacherOf != nil
}

// FindTeacher returns the registry entry with the given id.
func FindTeacher(teachers []Teacher, id string) (Teacher, bool) {
	for _, teacher := range teachers {
		if teacher.ID == id {
			return teacher, true
		}
	}
	return Teacher{}, false
}

// FindTeacherByEmail looks a teacher up by email, case-insensitively.
func FindTeacherByEmail(teachers []Teacher, email string) (Teacher, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return Teacher{}, false
	}
	for _, teacher := range teachers {
		if strings.ToLower(strings.TrimSpace(teacher.Email)) == email {
			return teacher, true
		}
	}
	return Teacher{}, false
}
