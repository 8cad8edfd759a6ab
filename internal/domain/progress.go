package domain

// Step labels reported by automation bots.
const (
	Step1        = "STEP 1"
	Step2        = "STEP 2"
	Step3        = "STEP 3"
	Step4        = "STEP 4"
	Step5        = "STEP 5"
	StepComplete = "COMPLETE"
	StepError    = "ERROR"
)

var stepProgress = map[string]int{
	Step1:        20,
	Step2:        40,
	Step3:        60,
	Step4:        80,
	Step5:        90,
	StepComplete: 100,
	StepError:    0,
}

// ProgressForStep maps a step label to its fixed progress percentage.
// Labels are matched exactly; unknown labels map to 0.
func ProgressForStep(step string) int {
	return stepProgress[step]
}
