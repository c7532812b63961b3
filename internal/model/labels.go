package model

// Checklist item labels produced by the detector after remapping.
const (
	LabelCase        = "case"
	LabelLeftEarbud  = "left_earbud"
	LabelRightEarbud = "right_earbud"
	LabelCable       = "cable"
)
