package documents

type extractRequest struct {
	Path string `json:"path"`
}

type summarizeRequest struct {
	Paths []string `json:"paths"`
}

type askRequest struct {
	Question string   `json:"question"`
	Paths    []string `json:"paths"`
}

type registerRequest struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	SizeBytes int64  `json:"sizeBytes"`
}

type listResponse struct {
	Documents []Document `json:"documents"`
}
