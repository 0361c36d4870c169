package dto

// SubmitFeedbackRequest is the payload for recording a rating. The rating
// scale is validated here, at submission time; the aggregation engine trusts
// stored records.
type SubmitFeedbackRequest struct {
	QuestionID string  `json:"question_id" validate:"required"`
	Rating     int     `json:"rating" validate:"required,min=1,max=5"`
	Notes      *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	MeetingID  *string `json:"meeting_id,omitempty"`
}
