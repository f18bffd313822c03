package domain

// Category is the fixed taxonomy an email is classified into
type Category string

const (
	CategoryWork        Category = "work"
	CategoryPersonal    Category = "personal"
	CategoryNewsletter  Category = "newsletter"
	CategoryPromotional Category = "promotional"
	CategorySocial      Category = "social"
	CategoryImportant   Category = "important"
	CategorySpam        Category = "spam"
	CategoryOther       Category = "other"
)

// Priority represents how urgently an email needs attention
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Sentiment represents the tone of an email
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Categories lists every valid category in prompt order
var Categories = []Category{
	CategoryWork, CategoryPersonal, CategoryNewsletter, CategoryPromotional,
	CategorySocial, CategoryImportant, CategorySpam, CategoryOther,
}

// Valid reports whether c belongs to the taxonomy
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Valid reports whether p is high, medium or low
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Valid reports whether s is positive, negative or neutral
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Classification is the structured AI-derived metadata for one message
type Classification struct {
	Summary        string    `json:"summary"`
	Category       Category  `json:"category"`
	Priority       Priority  `json:"priority"`
	ActionRequired bool      `json:"actionRequired"`
	Sentiment      Sentiment `json:"sentiment"`
}

// EmailContent is the classifier input for one message
type EmailContent struct {
	Subject string
	Body    string
	Sender  string
}

// DigestItem is one classified message as fed into the digest narrative prompt
type DigestItem struct {
	Subject  string
	Summary  string
	Category Category
	Priority Priority
}
