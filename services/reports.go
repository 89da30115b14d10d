package services

import (
	"context"
	"sort"
	"time"

	"tutorlink_go/models"
	"tutorlink_go/store"
)

// ReportFilter is the explicit query surface. FromDate/ToDate are civil
// dates; the range is inclusive on both ends, with ToDate widened to
// end-of-day so a single-day range covers the whole day.
type ReportFilter struct {
	FromDate  *time.Time
	ToDate    *time.Time
	BatchID   *uint
	StudentID *uint
	CallID    *uint
	TeacherID *uint
}

// StudentMarkView is one student's resolved mark inside a record view.
type StudentMarkView struct {
	StudentID   uint                    `json:"studentId"`
	StudentName string                  `json:"studentName"`
	Status      models.AttendanceStatus `json:"status"`
	MarkedAt    time.Time               `json:"markedAt"`
}

// AttendanceView is the flat per-call record with reference names joined.
type AttendanceView struct {
	ID          uint              `json:"id"`
	UUID        string            `json:"uuid"`
	CallID      uint              `json:"callId"`
	Date        time.Time         `json:"date"`
	BatchID     uint              `json:"batchId"`
	BatchName   string            `json:"batchName"`
	CourseID    uint              `json:"courseId"`
	CourseName  string            `json:"courseName"`
	TeacherID   uint              `json:"teacherId"`
	TeacherName string            `json:"teacherName"`
	Students    []StudentMarkView `json:"attendances"`
}

// BatchGroupView carries one batch's ordered records.
type BatchGroupView struct {
	BatchID   uint             `json:"batchId"`
	BatchName string           `json:"batchName"`
	Records   []AttendanceView `json:"records"`
}

// ReportResult is the role-shaped query output: flat records for
// student/teacher callers, per-batch groups for staff narrowing to one
// teacher.
type ReportResult struct {
	Grouped bool             `json:"grouped"`
	Records []AttendanceView `json:"records,omitempty"`
	Groups  []BatchGroupView `json:"groups,omitempty"`
}

// PivotCell distinguishes "no record" from an explicit Absent: a missing
// date key in a row's Statuses means no call happened or no mark was made.
type PivotRow struct {
	StudentID   uint                               `json:"studentId"`
	StudentName string                             `json:"studentName"`
	Statuses    map[string]models.AttendanceStatus `json:"statuses"`
}

// PivotView is the student x date matrix behind per-student dashboards.
type PivotView struct {
	Dates    []string   `json:"dates"`
	Students []PivotRow `json:"students"`
}

// ExportSheet is one rendered sheet of the flat export table.
type ExportSheet struct {
	Name string
	Rows [][]string
}

// ExportColumns is the deterministic export header.
var ExportColumns = []string{"Date", "Course", "Batch", "Teacher", "Student", "Status"}

// ReportEngine reads the ledger plus reference data and shapes role-scoped
// views. It never writes.
type ReportEngine struct {
	ledger store.AttendanceRepository
	refs   store.ReferenceRepository
	guard  *AccessGuard
}

func NewReportEngine(ledger store.AttendanceRepository, refs store.ReferenceRepository, guard *AccessGuard) *ReportEngine {
	return &ReportEngine{ledger: ledger, refs: refs, guard: guard}
}

// Query intersects the caller's visibility with the explicit filter and
// returns the view shape the role gets.
func (e *ReportEngine) Query(ctx context.Context, caller Caller, f ReportFilter) (*ReportResult, error) {
	vis := e.guard.VisibilityFilter(caller, f.TeacherID)
	rows, err := e.fetch(ctx, vis, f)
	if err != nil {
		return nil, err
	}

	views, err := e.resolve(ctx, rows, vis)
	if err != nil {
		return nil, err
	}

	// Staff narrowing to one teacher gets the per-batch breakdown.
	if caller.Role.IsStaff() && f.TeacherID != nil {
		return &ReportResult{Grouped: true, Groups: groupByBatch(views)}, nil
	}
	return &ReportResult{Records: views}, nil
}

// Pivot builds the student x date matrix for a fixed record set.
func (e *ReportEngine) Pivot(ctx context.Context, caller Caller, f ReportFilter) (*PivotView, error) {
	vis := e.guard.VisibilityFilter(caller, f.TeacherID)
	rows, err := e.fetch(ctx, vis, f)
	if err != nil {
		return nil, err
	}

	dateSet := make(map[string]struct{})
	type cell struct {
		name     string
		statuses map[string]models.AttendanceStatus
	}
	students := make(map[uint]*cell)
	var studentIDs []uint

	for _, row := range rows {
		day := row.Date.Format("2006-01-02")
		dateSet[day] = struct{}{}
		for _, entry := range row.Entries {
			if vis.StudentID != nil && entry.StudentID != *vis.StudentID {
				continue
			}
			c, ok := students[entry.StudentID]
			if !ok {
				c = &cell{statuses: make(map[string]models.AttendanceStatus)}
				students[entry.StudentID] = c
				studentIDs = append(studentIDs, entry.StudentID)
			}
			c.statuses[day] = entry.Status
		}
	}

	names, err := e.refs.UsersByIDs(ctx, studentIDs)
	if err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	sort.Slice(studentIDs, func(i, j int) bool { return studentIDs[i] < studentIDs[j] })
	out := make([]PivotRow, 0, len(studentIDs))
	for _, id := range studentIDs {
		out = append(out, PivotRow{
			StudentID:   id,
			StudentName: names[id].Name,
			Statuses:    students[id].statuses,
		})
	}
	return &PivotView{Dates: dates, Students: out}, nil
}

// ExportSheets flattens the query result into the tabular export: one row
// per (call, student), split into one sheet per batch for unscoped staff,
// a single sheet otherwise. Sheet names are sanitized and unique.
func (e *ReportEngine) ExportSheets(ctx context.Context, caller Caller, f ReportFilter) ([]ExportSheet, error) {
	vis := e.guard.VisibilityFilter(caller, f.TeacherID)
	rows, err := e.fetch(ctx, vis, f)
	if err != nil {
		return nil, err
	}
	views, err := e.resolve(ctx, rows, vis)
	if err != nil {
		return nil, err
	}

	perBatch := caller.Role.IsStaff() && f.TeacherID == nil

	header := append([]string(nil), ExportColumns...)
	if !perBatch {
		sheet := ExportSheet{Name: "Attendance", Rows: [][]string{header}}
		for _, v := range views {
			sheet.Rows = append(sheet.Rows, exportRows(v)...)
		}
		return []ExportSheet{sheet}, nil
	}

	sheets := make([]ExportSheet, 0)
	names := newSheetNamer()
	for _, group := range groupByBatch(views) {
		sheet := ExportSheet{
			Name: names.unique(group.BatchName),
			Rows: [][]string{append([]string(nil), ExportColumns...)},
		}
		for _, v := range group.Records {
			sheet.Rows = append(sheet.Rows, exportRows(v)...)
		}
		sheets = append(sheets, sheet)
	}
	if len(sheets) == 0 {
		sheets = append(sheets, ExportSheet{Name: "Attendance", Rows: [][]string{header}})
	}
	return sheets, nil
}

// fetch intersects visibility with the explicit filter and widens ToDate
// to end-of-day so both ends of the range are inclusive.
func (e *ReportEngine) fetch(ctx context.Context, vis Visibility, f ReportFilter) ([]models.Attendance, error) {
	sf := store.AttendanceFilter{
		BatchID: f.BatchID,
		CallID:  f.CallID,
	}
	if f.FromDate != nil {
		from := startOfDay(*f.FromDate)
		sf.FromDate = &from
	}
	if f.ToDate != nil {
		to := endOfDay(*f.ToDate)
		sf.ToDate = &to
	}
	sf.TeacherID = f.TeacherID
	if vis.TeacherID != nil {
		sf.TeacherID = vis.TeacherID
	}
	sf.StudentID = f.StudentID
	if vis.StudentID != nil {
		sf.StudentID = vis.StudentID
	}
	return e.ledger.Query(ctx, sf)
}

// resolve joins reference names onto raw ledger rows. A student caller's
// view is additionally trimmed to their own entries.
func (e *ReportEngine) resolve(ctx context.Context, rows []models.Attendance, vis Visibility) ([]AttendanceView, error) {
	batchIDs := make([]uint, 0, len(rows))
	courseIDs := make([]uint, 0, len(rows))
	userIDs := make([]uint, 0)
	seenBatch := map[uint]struct{}{}
	seenCourse := map[uint]struct{}{}
	seenUser := map[uint]struct{}{}

	addUser := func(id uint) {
		if _, ok := seenUser[id]; !ok {
			seenUser[id] = struct{}{}
			userIDs = append(userIDs, id)
		}
	}

	for _, row := range rows {
		if _, ok := seenBatch[row.BatchID]; !ok {
			seenBatch[row.BatchID] = struct{}{}
			batchIDs = append(batchIDs, row.BatchID)
		}
		if _, ok := seenCourse[row.CourseID]; !ok {
			seenCourse[row.CourseID] = struct{}{}
			courseIDs = append(courseIDs, row.CourseID)
		}
		addUser(row.TeacherID)
		for _, entry := range row.Entries {
			addUser(entry.StudentID)
		}
	}

	batches, err := e.refs.BatchesByIDs(ctx, batchIDs)
	if err != nil {
		return nil, err
	}
	courses, err := e.refs.CoursesByIDs(ctx, courseIDs)
	if err != nil {
		return nil, err
	}
	users, err := e.refs.UsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	views := make([]AttendanceView, 0, len(rows))
	for _, row := range rows {
		view := AttendanceView{
			ID:          row.ID,
			UUID:        row.UUID,
			CallID:      row.CallID,
			Date:        row.Date,
			BatchID:     row.BatchID,
			BatchName:   batches[row.BatchID].Name,
			CourseID:    row.CourseID,
			CourseName:  courses[row.CourseID].Name,
			TeacherID:   row.TeacherID,
			TeacherName: users[row.TeacherID].Name,
		}
		for _, entry := range row.Entries {
			if vis.StudentID != nil && entry.StudentID != *vis.StudentID {
				continue
			}
			view.Students = append(view.Students, StudentMarkView{
				StudentID:   entry.StudentID,
				StudentName: users[entry.StudentID].Name,
				Status:      entry.Status,
				MarkedAt:    entry.MarkedAt,
			})
		}
		views = append(views, view)
	}
	return views, nil
}

func groupByBatch(views []AttendanceView) []BatchGroupView {
	index := make(map[uint]int)
	var groups []BatchGroupView
	for _, v := range views {
		i, ok := index[v.BatchID]
		if !ok {
			i = len(groups)
			index[v.BatchID] = i
			groups = append(groups, BatchGroupView{BatchID: v.BatchID, BatchName: v.BatchName})
		}
		groups[i].Records = append(groups[i].Records, v)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].BatchName < groups[j].BatchName })
	return groups
}

func exportRows(v AttendanceView) [][]string {
	rows := make([][]string, 0, len(v.Students))
	for _, s := range v.Students {
		rows = append(rows, []string{
			v.Date.Format("2006-01-02"),
			v.CourseName,
			v.BatchName,
			v.TeacherName,
			s.StudentName,
			string(s.Status),
		})
	}
	return rows
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(24*time.Hour - time.Nanosecond)
}
