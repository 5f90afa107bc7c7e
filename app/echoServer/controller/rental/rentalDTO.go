package rental

import "time"

type ProposeSlotReq struct {
	ReturnDatetime time.Time `json:"return_datetime" validate:"required"`
	StartTime      string    `json:"start_time" validate:"required"`
	EndTime        string    `json:"end_time" validate:"required"`
}
