package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// Role is the closed set of caller roles. All authorization decisions go
// through services.AccessGuard; nothing compares raw role strings ad hoc.
type Role string

const (
	RoleStudent    Role = "student"
	RoleTeacher    Role = "teacher"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role may see unscoped data.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// CallStatus is the scheduled-call state machine. Completed and Cancelled
// are terminal; Rescheduled may be re-entered any number of times.
type CallStatus string

const (
	CallScheduled   CallStatus = "scheduled"
	CallRescheduled CallStatus = "rescheduled"
	CallCompleted   CallStatus = "completed"
	CallCancelled   CallStatus = "cancelled"
)

func (s CallStatus) Terminal() bool {
	return s == CallCompleted || s == CallCancelled
}

// AttendanceStatus is a per-student mark. A student missing from an
// attendance entry list has no record, which is not the same as absent.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "Present"
	AttendanceAbsent  AttendanceStatus = "Absent"
)

func (s AttendanceStatus) Valid() bool {
	return s == AttendancePresent || s == AttendanceAbsent
}

// User model
type User struct {
	BaseModel
	Username string `json:"username" gorm:"size:100;not null;uniqueIndex"`
	Password string `json:"-" gorm:"size:255;not null"`
	Email    string `json:"email" gorm:"size:255"`
	Phone    string `json:"phone" gorm:"size:20"`
	Name     string `json:"name" gorm:"size:200;not null"`
	Role     Role   `json:"role" gorm:"size:50;not null;default:'student';type:enum('student','teacher','admin','superadmin')"`
	Status   string `json:"status" gorm:"size:50;not null;default:'active';type:enum('active','inactive','suspended')"`
	Avatar   string `json:"avatar" gorm:"size:500"`
}

// Course model (reference data for report joins)
type Course struct {
	BaseModel
	Name        string `json:"name" gorm:"size:255;not null"`
	Code        string `json:"code" gorm:"size:100;uniqueIndex"`
	Subject     string `json:"subject" gorm:"size:100"`
	Class       string `json:"class" gorm:"size:50"`
	Description string `json:"description" gorm:"type:text"`
	Active      bool   `json:"active" gorm:"default:true"`
}

// Batch model - a group of enrolled students tied to a course and teacher
type Batch struct {
	BaseModel
	Name      string `json:"name" gorm:"size:255;not null"`
	CourseID  uint   `json:"courseId" gorm:"not null"`
	TeacherID uint   `json:"teacherId" gorm:"not null;index"`
	Timezone  string `json:"timezone" gorm:"size:64;default:'Asia/Kolkata'"`
	Active    bool   `json:"active" gorm:"default:true"`

	// Relationships
	Course   Course         `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	Teacher  User           `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Students []BatchStudent `json:"students,omitempty" gorm:"foreignKey:BatchID"`
}

// BatchStudent is the enrollment row (the call roster)
type BatchStudent struct {
	BaseModel
	BatchID   uint   `json:"batchId" gorm:"not null;index:idx_batch_student,unique"`
	StudentID uint   `json:"studentId" gorm:"not null;index:idx_batch_student,unique"`
	Status    string `json:"status" gorm:"size:50;default:'active';type:enum('active','inactive','dropped')"`

	Student User `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

// ScheduledCall model. JSON names on status/previous*/isDeleted are part of
// the durable wire contract and must not be renamed.
type ScheduledCall struct {
	BaseModel
	TeacherID uint  `json:"teacherId" gorm:"not null;index"`
	CourseID  uint  `json:"courseId" gorm:"not null"`
	BatchID   uint  `json:"batchId" gorm:"not null;index"`
	LessonID  *uint `json:"lessonId,omitempty"`

	Date        time.Time `json:"date" gorm:"not null;index"`
	StartTime   string    `json:"startTime" gorm:"size:10;not null"`
	EndTime     string    `json:"endTime" gorm:"size:10;not null"`
	DurationMin int       `json:"durationMin"`
	Timezone    string    `json:"timezone" gorm:"size:64;default:'Asia/Kolkata'"`

	MeetingLink     string `json:"meetingLink" gorm:"size:500"`
	MeetingPassword string `json:"meetingPassword" gorm:"size:100"`

	Status CallStatus `json:"status" gorm:"size:50;not null;default:'scheduled';type:enum('scheduled','rescheduled','completed','cancelled')"`

	// Recurring template tags; a flat list of weekdays, no recurrence
	// evaluation happens anywhere in this service.
	Days   JSON `json:"days" gorm:"type:json"`
	Repeat bool `json:"repeat" gorm:"default:false"`

	// Snapshot of the immediately-prior slot, overwritten on every
	// reschedule. Only one level of history is kept.
	PreviousDate      *time.Time `json:"previousDate,omitempty"`
	PreviousStartTime *string    `json:"previousStartTime,omitempty" gorm:"size:10"`
	PreviousEndTime   *string    `json:"previousEndTime,omitempty" gorm:"size:10"`

	IsDeleted bool `json:"isDeleted" gorm:"default:false;index"`

	// Relationships
	Teacher User   `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Course  Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`
	Batch   Batch  `json:"batch,omitempty" gorm:"foreignKey:BatchID"`
}

// StudentEntry is one student's mark inside an attendance record.
type StudentEntry struct {
	StudentID uint             `json:"studentId"`
	Status    AttendanceStatus `json:"status"`
	MarkedAt  time.Time        `json:"markedAt"`
	MarkedBy  uint             `json:"markedBy"`
}

// StudentEntryList stores the per-student entries as a JSON column.
type StudentEntryList []StudentEntry

func (l StudentEntryList) Value() (driver.Value, error) {
	if l == nil {
		l = StudentEntryList{}
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StudentEntryList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		if s, sok := value.(string); sok {
			b = []byte(s)
		} else {
			return nil
		}
	}
	return json.Unmarshal(b, l)
}

// Attendance model. Exactly one row per call: call_id carries a unique
// index, and so does the caller-supplied idempotency key. Batch, course,
// teacher and date are denormalized from the call at mark time.
type Attendance struct {
	BaseModel
	UUID           string           `json:"uuid" gorm:"size:36;uniqueIndex"`
	CallID         uint             `json:"callId" gorm:"not null;uniqueIndex"`
	BatchID        uint             `json:"batchId" gorm:"not null;index"`
	CourseID       uint             `json:"courseId" gorm:"not null"`
	TeacherID      uint             `json:"teacherId" gorm:"not null;index"`
	Date           time.Time        `json:"date" gorm:"not null;index"`
	Entries        StudentEntryList `json:"attendances" gorm:"column:attendances;type:json"`
	CreatedBy      uint             `json:"createdBy"`
	IdempotencyKey string           `json:"idempotencyKey" gorm:"size:128;not null;uniqueIndex"`
}

// Notification model
type Notification struct {
	BaseModel
	UserID  uint       `json:"userId" gorm:"not null;index"`
	Title   string     `json:"title" gorm:"size:255;not null"`
	Message string     `json:"message" gorm:"type:text;not null"`
	Type    string     `json:"type" gorm:"size:50;not null;type:enum('info','warning','error','success')"`
	Read    bool       `json:"read" gorm:"default:false"`
	ReadAt  *time.Time `json:"readAt"`
	Data    JSON       `json:"data,omitempty" gorm:"type:json"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"userId"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resourceId"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ipAddress" gorm:"size:45"`
	UserAgent  string `json:"userAgent" gorm:"size:500"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// ExportArchive tracks generated attendance exports uploaded to S3
type ExportArchive struct {
	BaseModel
	FileName string    `json:"fileName" gorm:"size:255;not null"`
	S3Key    string    `json:"s3Key" gorm:"size:500"`
	FromDate time.Time `json:"fromDate"`
	ToDate   time.Time `json:"toDate"`
	RowCount int       `json:"rowCount"`
	FileSize int64     `json:"fileSize"`
	Status   string    `json:"status" gorm:"size:50;not null;default:'pending';type:enum('pending','completed','failed')"`
	Error    string    `json:"error" gorm:"type:text"`
}
