package core

// Asset is a local artifact (e.g. a function code archive) that must be
// staged in object storage before the stack referencing it is submitted.
type Asset struct {
	Bucket string
	Key    string
	Path   string
}
