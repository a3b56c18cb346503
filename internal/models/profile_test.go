package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfileDocumentExtrasNeverOverrideUID(t *testing.T) {
	doc := NewProfileDocument("u1", "jan@example.edu", "Jan", RoleStudent, Document{
		"uid":   "spoofed",
		"batch": "2024",
	})

	assert.Equal(t, "u1", doc.UID())
	assert.Equal(t, "2024", doc["batch"])
	assert.Equal(t, "student", doc[FieldRole])
	assert.NotEmpty(t, doc[FieldCreatedAt])
}

func TestDocumentMerge(t *testing.T) {
	base := Document{"uid": "u1", "bio": "old", "batch": "2024"}
	merged := base.Merge(Document{"bio": "new", "skills": []string{"go"}})

	assert.Equal(t, "new", merged["bio"], "fields present in the partial overwrite")
	assert.Equal(t, "2024", merged["batch"], "fields absent from the partial persist")
	assert.Equal(t, "old", base["bio"], "the receiver is untouched")
}

func TestDocumentMergeNilReceiver(t *testing.T) {
	var base Document
	merged := base.Merge(Document{"bio": "new"})
	assert.Equal(t, "new", merged["bio"])
}

func TestDocumentCloneNil(t *testing.T) {
	var d Document
	assert.Nil(t, d.Clone())
}

func TestDocumentAccessorsTolerateMissingKeys(t *testing.T) {
	d := Document{"uid": 42} // wrong type on purpose
	assert.Equal(t, "", d.UID())
	assert.Equal(t, "", d.Email())
	assert.Equal(t, RoleUnset, d.Role())
}

func TestDecodeProfileStudent(t *testing.T) {
	doc := NewProfileDocument("u1", "jan@example.edu", "Jan", RoleStudent, Document{
		"studentId": "S-100",
		"batch":     "2024",
		"skills":    []interface{}{"go", "mongo"},
		"experience": []interface{}{
			map[string]interface{}{"title": "Intern", "company": "Acme"},
		},
		"hobby": "chess",
	})

	p := DecodeProfile(doc)
	require.NotNil(t, p)
	assert.Equal(t, RoleStudent, p.Role)
	require.NotNil(t, p.Student)
	assert.Equal(t, "S-100", p.Student.StudentID)
	assert.Equal(t, []string{"go", "mongo"}, p.Student.Skills)
	require.Len(t, p.Student.Experience, 1)
	assert.Equal(t, "Acme", p.Student.Experience[0].Company)
	assert.Nil(t, p.Teacher)
	assert.Nil(t, p.Department)
	assert.Equal(t, "chess", p.Extra["hobby"], "unknown keys land in Extra")
}

func TestDecodeProfileTeacher(t *testing.T) {
	doc := NewProfileDocument("u2", "prof@example.edu", "Prof", RoleTeacher, Document{
		"teacherId":   "T-2024-001",
		"designation": "Associate Professor",
		"courses":     []string{"CS101"},
	})

	p := DecodeProfile(doc)
	require.NotNil(t, p)
	require.NotNil(t, p.Teacher)
	assert.Equal(t, "T-2024-001", p.Teacher.TeacherID)
	assert.Equal(t, "Associate Professor", p.Teacher.Designation)
	assert.Equal(t, []string{"CS101"}, p.Teacher.Courses)
	assert.Nil(t, p.Student)
}

func TestDecodeProfileDepartment(t *testing.T) {
	doc := NewProfileDocument("u3", "cs@example.edu", "CS Dept", RoleDepartment, Document{
		"deptCode": "CS",
		"headName": "Dr. Nowak",
	})

	p := DecodeProfile(doc)
	require.NotNil(t, p)
	require.NotNil(t, p.Department)
	assert.Equal(t, "CS", p.Department.DeptCode)
	assert.Equal(t, "Dr. Nowak", p.Department.HeadName)
}

func TestDecodeProfileNil(t *testing.T) {
	assert.Nil(t, DecodeProfile(nil))
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"student", "teacher", "department"} {
		r, err := ParseRole(valid)
		require.NoError(t, err)
		assert.Equal(t, Role(valid), r)
	}

	_, err := ParseRole("admin")
	assert.Error(t, err)
	_, err = ParseRole("")
	assert.Error(t, err)
}
