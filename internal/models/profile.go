package models

import "time"

// CacheSchemaVersion is stamped on every locally cached document so future
// format changes can be migrated instead of silently misread.
const CacheSchemaVersion = 1

// Document is the schemaless profile record stored remotely and mirrored in
// the local cache, keyed by the identity provider's UID. The field set is
// open-ended; only "uid" and "role" are guaranteed once the document exists.
type Document map[string]interface{}

// Reserved document keys decoded into the typed Profile views.
const (
	FieldUID         = "uid"
	FieldEmail       = "email"
	FieldDisplayName = "displayName"
	FieldRole        = "role"
	FieldPhotoURL    = "photoURL"
	FieldCreatedAt   = "createdAt"
	FieldUpdatedAt   = "updatedAt"
)

// NewProfileDocument builds the initial document for a user, in the same shape
// the registration flow persists: identity fields, role, creation timestamp,
// then any caller-supplied extras layered on top.
func NewProfileDocument(uid, email, displayName string, role Role, extra Document) Document {
	doc := Document{
		FieldUID:         uid,
		FieldEmail:       email,
		FieldDisplayName: displayName,
		FieldRole:        string(role),
		FieldCreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		doc[k] = v
	}
	// Extras never override identity keys.
	doc[FieldUID] = uid
	return doc
}

// Clone returns a shallow copy. Nested collections are shared; callers treat
// documents as immutable snapshots and replace rather than mutate them.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge returns a new document with partial layered over d: fields present in
// partial overwrite, fields absent from partial persist.
func (d Document) Merge(partial Document) Document {
	out := d.Clone()
	if out == nil {
		out = make(Document, len(partial))
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

func (d Document) str(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}

func (d Document) UID() string { return d.str(FieldUID) }

func (d Document) Email() string { return d.str(FieldEmail) }

func (d Document) DisplayName() string { return d.str(FieldDisplayName) }

func (d Document) Role() Role {
	if r, err := ParseRole(d.str(FieldRole)); err == nil {
		return r
	}
	return RoleUnset
}

// Experience is one entry of a profile's work history.
type Experience struct {
	Title    string `json:"title"`
	Company  string `json:"company"`
	Location string `json:"location,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// StudentProfile carries the student-specific attributes.
type StudentProfile struct {
	StudentID  string       `json:"studentId,omitempty"`
	Batch      string       `json:"batch,omitempty"`
	Department string       `json:"department,omitempty"`
	Skills     []string     `json:"skills,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
}

// TeacherProfile carries the teacher-specific attributes.
type TeacherProfile struct {
	TeacherID   string       `json:"teacherId,omitempty"`
	Department  string       `json:"department,omitempty"`
	Designation string       `json:"designation,omitempty"`
	Courses     []string     `json:"courses,omitempty"`
	Experience  []Experience `json:"experience,omitempty"`
}

// DepartmentProfile carries the department-account attributes.
type DepartmentProfile struct {
	DeptCode     string `json:"deptCode,omitempty"`
	HeadName     string `json:"headName,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
}

// Profile is the typed view over a Document: a common base, at most one
// role-specific variant, and an Extra map holding every attribute the decoder
// does not recognize.
type Profile struct {
	UID         string                 `json:"uid"`
	Email       string                 `json:"email"`
	DisplayName string                 `json:"displayName"`
	Role        Role                   `json:"role"`
	PhotoURL    string                 `json:"photoURL,omitempty"`
	CreatedAt   string                 `json:"createdAt,omitempty"`
	UpdatedAt   string                 `json:"updatedAt,omitempty"`
	Student     *StudentProfile        `json:"student,omitempty"`
	Teacher     *TeacherProfile        `json:"teacher,omitempty"`
	Department  *DepartmentProfile     `json:"department,omitempty"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

var baseKeys = map[string]bool{
	FieldUID: true, FieldEmail: true, FieldDisplayName: true,
	FieldRole: true, FieldPhotoURL: true, FieldCreatedAt: true, FieldUpdatedAt: true,
}

var studentKeys = map[string]bool{
	"studentId": true, "batch": true, "department": true, "skills": true, "experience": true,
}

var teacherKeys = map[string]bool{
	"teacherId": true, "department": true, "designation": true, "courses": true, "experience": true,
}

var departmentKeys = map[string]bool{
	"deptCode": true, "headName": true, "contactEmail": true,
}

// DecodeProfile maps a schemaless document onto the typed view. Unknown keys
// land in Extra untouched.
func DecodeProfile(d Document) *Profile {
	if d == nil {
		return nil
	}
	p := &Profile{
		UID:         d.UID(),
		Email:       d.str(FieldEmail),
		DisplayName: d.str(FieldDisplayName),
		Role:        d.Role(),
		PhotoURL:    d.str(FieldPhotoURL),
		CreatedAt:   d.str(FieldCreatedAt),
		UpdatedAt:   d.str(FieldUpdatedAt),
	}

	var roleKeys map[string]bool
	switch p.Role {
	case RoleStudent:
		roleKeys = studentKeys
		p.Student = &StudentProfile{
			StudentID:  d.str("studentId"),
			Batch:      d.str("batch"),
			Department: d.str("department"),
			Skills:     strSlice(d["skills"]),
			Experience: expSlice(d["experience"]),
		}
	case RoleTeacher:
		roleKeys = teacherKeys
		p.Teacher = &TeacherProfile{
			TeacherID:   d.str("teacherId"),
			Department:  d.str("department"),
			Designation: d.str("designation"),
			Courses:     strSlice(d["courses"]),
			Experience:  expSlice(d["experience"]),
		}
	case RoleDepartment:
		roleKeys = departmentKeys
		p.Department = &DepartmentProfile{
			DeptCode:     d.str("deptCode"),
			HeadName:     d.str("headName"),
			ContactEmail: d.str("contactEmail"),
		}
	}

	for k, v := range d {
		if baseKeys[k] || (roleKeys != nil && roleKeys[k]) {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]interface{})
		}
		p.Extra[k] = v
	}
	return p
}

func strSlice(v interface{}) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

func expSlice(v interface{}) []Experience {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]Experience, 0, len(items))
	for _, e := range items {
		m, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, Experience{
			Title:    Document(m).str("title"),
			Company:  Document(m).str("company"),
			Location: Document(m).str("location"),
			Duration: Document(m).str("duration"),
		})
	}
	return out
}
