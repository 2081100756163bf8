package request

type SubmitRequestBody struct {
	CategoryID    string  `json:"category_id" binding:"required" validate:"required,max=36"`
	ScheduledDate *string `json:"scheduled_date" validate:"omitempty,datetime=2006-01-02"`
	ScheduledTime *string `json:"scheduled_time" validate:"omitempty,len=5"`
}

type CompleteRequestBody struct {
	Rating   int     `json:"rating" binding:"required" validate:"min=1,max=5"`
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}

type CancelRequestBody struct {
	Reason string `json:"reason" validate:"max=500"`
}
