package pipeline

// Output item counts scale with the word count of the final summary:
// monotonic step functions bounded between a minimum and maximum, so
// longer inputs yield more study material without unbounded growth.

func keyPointCount(summaryWords int) int {
	switch {
	case summaryWords < 150:
		return 5
	case summaryWords < 400:
		return 7
	case summaryWords < 800:
		return 9
	default:
		return 12
	}
}

func flashcardCount(summaryWords int) int {
	switch {
	case summaryWords < 150:
		return 6
	case summaryWords < 400:
		return 8
	case summaryWords < 800:
		return 10
	default:
		return 12
	}
}

func questionCount(summaryWords int) int {
	switch {
	case summaryWords < 150:
		return 4
	case summaryWords < 400:
		return 6
	case summaryWords < 800:
		return 8
	default:
		return 10
	}
}
