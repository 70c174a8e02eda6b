package model

import "time"

// Arguments holds the submissions of each side. A value is either free text
// or a nested structure, exactly as the extractor returned it.
type Arguments struct {
	Petitioner any `json:"petitioner"`
	Respondent any `json:"respondent"`
}

// JudgmentRecord is the system of record for an ingested judgment.
type JudgmentRecord struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Title        string    `gorm:"size:512;index" json:"title"`
	Court        string    `gorm:"size:256" json:"court"`
	Date         string    `gorm:"size:64" json:"date"`
	Facts        string    `gorm:"type:text" json:"facts"`
	Issues       []string  `gorm:"serializer:json;type:json" json:"issues"`
	Arguments    Arguments `gorm:"serializer:json;type:json" json:"arguments"`
	Ratio        string    `gorm:"type:text" json:"ratio"`
	Holding      string    `gorm:"type:text" json:"holding"`
	Citations    []string  `gorm:"serializer:json;type:json" json:"citations"`
	OriginalText string    `gorm:"type:longtext" json:"original_text"`
	CreatedAt    time.Time `json:"created_at"`
}

func (JudgmentRecord) TableName() string {
	return "judgments"
}
