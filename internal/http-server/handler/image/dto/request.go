package dto

type UploadRequest struct {
	Preset  string `validate:"required,max=128"`
	ImageID uint64
	Client  string `validate:"max=255"`
	Wait    bool
}

type JobRequest struct {
	ID string `validate:"required,uuid"`
}
