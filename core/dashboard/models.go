package dashboard

import (
	"time"

	"github.com/classhub/lms/core/class"
	"github.com/classhub/lms/core/user"
)

// Unassigned is the professor name of a class whose professor does not exist anymore.
const Unassigned = "unassigned"

type (
	ClassSummary struct {
		class.Class
		ProfName string `json:"prof_name"`
	}

	AdminDashboard struct {
		Users   []user.User    `json:"users"`
		Classes []ClassSummary `json:"classes"`
	}

	// QnAEntry is a QnA post with its author resolved.
	QnAEntry struct {
		class.QnA
		AuthorName string `json:"author_name"`
		Mine       bool   `json:"mine"`
	}

	// StudentProgress is the average progress of an enrolled student over the class lectures.
	StudentProgress struct {
		StudentID  string    `json:"student_id"`
		Name       string    `json:"name"`
		Username   string    `json:"username"`
		AvgRate    int       `json:"avg_rate"`
		Status     string    `json:"status"`
		EnrolledAt time.Time `json:"enrolled_at"`
	}

	ClassDashboard struct {
		Class     ClassSummary      `json:"class"`
		Lectures  []class.Lecture   `json:"lectures"`
		Resources []class.Resource  `json:"resources"`
		QnAs      []QnAEntry        `json:"qnas"`
		Students  []StudentProgress `json:"students"`
	}

	LectureStudentStat struct {
		StudentID string `json:"student_id"`
		Name      string `json:"name"`
		Username  string `json:"username"`
		Rate      int    `json:"rate"`
		Status    string `json:"status"`
	}

	LectureStats struct {
		Lecture  class.Lecture        `json:"lecture"`
		Students []LectureStudentStat `json:"students"`
	}

	ExploreClass struct {
		ClassSummary
		IsEnrolled bool `json:"is_enrolled"`
	}

	// LectureProgress is a lecture with the progress of the current student on it.
	LectureProgress struct {
		class.Lecture
		Rate         int     `json:"rate"`
		Status       string  `json:"status"`
		LastPosition float64 `json:"last_position"`
	}

	StudentClassDashboard struct {
		Class     ClassSummary      `json:"class"`
		Lectures  []LectureProgress `json:"lectures"`
		Resources []class.Resource  `json:"resources"`
		QnAs      []QnAEntry        `json:"qnas"`
		AvgRate   int               `json:"avg_rate"`
		Status    string            `json:"status"`
	}
)
