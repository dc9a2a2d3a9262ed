package cli

import "quiz-battle-service/internal/domain"

// sampleQuestions backs the static pool when no Postgres is configured.
func sampleQuestions() []domain.Question {
	q := func(id, prompt string, correct int, options ...string) domain.Question {
		return domain.Question{ID: id, Prompt: prompt, Options: options, CorrectIndex: correct, Difficulty: "medium"}
	}
	return []domain.Question{
		q("sample-1", "What is 2 + 2?", 1, "3", "4", "5", "22"),
		q("sample-2", "Which planet is known as the Red Planet?", 2, "Venus", "Jupiter", "Mars", "Saturn"),
		q("sample-3", "What is the chemical symbol for gold?", 0, "Au", "Ag", "Gd", "Go"),
		q("sample-4", "How many continents are there?", 3, "4", "5", "6", "7"),
		q("sample-5", "Which language is primarily spoken in Brazil?", 1, "Spanish", "Portuguese", "French", "English"),
		q("sample-6", "What is the largest ocean on Earth?", 2, "Atlantic", "Indian", "Pacific", "Arctic"),
		q("sample-7", "Who wrote 'Romeo and Juliet'?", 0, "William Shakespeare", "Charles Dickens", "Jane Austen", "Mark Twain"),
		q("sample-8", "What gas do plants absorb from the air?", 1, "Oxygen", "Carbon dioxide", "Nitrogen", "Hydrogen"),
		q("sample-9", "What is the square root of 81?", 2, "7", "8", "9", "10"),
		q("sample-10", "Which organ pumps blood through the body?", 0, "Heart", "Liver", "Lungs", "Kidneys"),
		q("sample-11", "How many sides does a hexagon have?", 3, "4", "5", "8", "6"),
		q("sample-12", "What is the freezing point of water in Celsius?", 1, "-10", "0", "10", "32"),
	}
}
