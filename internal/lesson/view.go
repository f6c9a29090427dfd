package lesson

import "github.com/guriuo/hiigsitech/internal/domain"

type LessonSummary struct {
	Key       string `json:"key"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type ModuleSummary struct {
	Key     string          `json:"key"`
	Title   string          `json:"title"`
	Lessons []LessonSummary `json:"lessons"`
}

// View is a point-in-time rendering of the navigator's state.
type View struct {
	CourseID        string          `json:"courseId"`
	CourseTitle     string          `json:"courseTitle"`
	Modules         []ModuleSummary `json:"modules"`
	Active          *domain.Lesson  `json:"active"`
	VideoSource     string          `json:"videoSource,omitempty"`
	Index           int             `json:"index"`
	Total           int             `json:"total"`
	HasPrev         bool            `json:"hasPrev"`
	HasNext         bool            `json:"hasNext"`
	Completed       []string        `json:"completed"`
	ActiveCompleted bool            `json:"activeCompleted"`
	Progress        int             `json:"progress"`
	Notes           string          `json:"notes"`
	ActionLabel     string          `json:"actionLabel"`
}

func (n *Navigator) Snapshot() View {
	n.mu.Lock()
	defer n.mu.Unlock()

	v := View{
		CourseID:    n.courseID,
		CourseTitle: n.course.Title,
		Index:       n.index,
		Total:       len(n.lessons),
		Completed:   append([]string{}, n.completed...),
		Progress:    n.progressLocked(),
		Notes:       n.notes,
		ActionLabel: LabelMarkComplete,
	}

	for _, m := range n.course.Modules {
		ms := ModuleSummary{Key: m.Key, Title: m.Title, Lessons: make([]LessonSummary, 0, len(m.Lessons))}
		for _, l := range m.Lessons {
			_, done := n.completedSet[l.Key]
			ms.Lessons = append(ms.Lessons, LessonSummary{Key: l.Key, Slug: l.Slug, Title: l.Title, Completed: done})
		}
		v.Modules = append(v.Modules, ms)
	}

	if n.index >= 0 {
		active := n.lessons[n.index]
		v.Active = &active
		v.VideoSource = active.VideoSource()
		v.HasPrev = n.index > 0
		v.HasNext = n.index < len(n.lessons)-1
		if _, done := n.completedSet[active.Key]; done {
			v.ActiveCompleted = true
			v.ActionLabel = LabelNextLesson
		}
	}
	return v
}
