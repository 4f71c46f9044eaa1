package models

// Grade is a class level. Grades are totally ordered by their position in Grades.
type Grade string

const (
	GradePlaygroup Grade = "Playgroup"
	GradePP1       Grade = "PP1"
	GradePP2       Grade = "PP2"
	Grade1         Grade = "Grade 1"
	Grade2         Grade = "Grade 2"
	Grade3         Grade = "Grade 3"
	Grade4         Grade = "Grade 4"
	Grade5         Grade = "Grade 5"
	Grade6         Grade = "Grade 6"
	Grade7         Grade = "Grade 7"
	Grade8         Grade = "Grade 8"
	Grade9         Grade = "Grade 9"
)

// Grades lists every grade from first to last. The last entry is the terminal grade.
var Grades = []Grade{
	GradePlaygroup, GradePP1, GradePP2,
	Grade1, Grade2, Grade3, Grade4, Grade5, Grade6, Grade7, Grade8, Grade9,
}

// Index returns the position of g in Grades, or -1 for an unknown grade.
func (g Grade) Index() int {
	for i, grade := range Grades {
		if grade == g {
			return i
		}
	}
	return -1
}

// Valid reports whether g is one of Grades.
func (g Grade) Valid() bool {
	return g.Index() >= 0
}

// Terminal reports whether g is the last grade, after which a learner leaves the school.
func (g Grade) Terminal() bool {
	return g == Grades[len(Grades)-1]
}

// Next returns the grade following g.
// ok is false when g is terminal or unknown.
func (g Grade) Next() (next Grade, ok bool) {
	i := g.Index()
	if i < 0 || i == len(Grades)-1 {
		return "", false
	}
	return Grades[i+1], true
}
