package models

type Book struct {
	ID               int64  `json:"id"`
	Title            string `json:"title"`
	Author           string `json:"author"`
	Description      string `json:"description"`
	OriginalFilename string `json:"originalFilename"`
	TotalPages       int    `json:"totalPages"`
	FileSize         int64  `json:"fileSize"`
	UploadedBy       string `json:"uploadedBy"`
	CreatedAt        string `json:"createdAt"`
	UpdatedAt        string `json:"updatedAt"`
}

type UploadBookRequest struct {
	Title       string `json:"title" validate:"required,notblank,min=1,max=200"`
	Author      string `json:"author" validate:"required,notblank,min=1,max=100"`
	Description string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

type UpdateBookRequest struct {
	Title       string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Author      string `json:"author,omitempty" validate:"omitempty,min=1,max=100"`
	Description string `json:"description,omitempty" validate:"omitempty,max=1000"`
}

type BookStatistics struct {
	TotalViews     int64  `json:"totalViews"`
	TotalDownloads int64  `json:"totalDownloads"`
	UniqueUsers    int64  `json:"uniqueUsers"`
	LastAccessedAt string `json:"lastAccessedAt"`
	PopularPages   []int  `json:"popularPages"`
}
