package app

const (
	Name        = "catd"
	DBFilename  = "catd.db"
	LogFilename = "catd.log"
	PidFilename = "catd.pid"
)
