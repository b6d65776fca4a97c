// Package version хранит данные сборки order-service.
// Значения проставляются при сборке:
//
//	go build -ldflags "-X .../internal/version.version=v1.2.0 -X .../internal/version.commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Service — имя сервиса в логах, трассировке и health-ответах.
const Service = "order-service"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Build — данные текущей сборки.
type Build struct {
	Service string
	Version string
	Commit  string
	Date    string
}

func Current() Build {
	return Build{Service: Service, Version: version, Commit: commit, Date: date}
}

// Dev сообщает, что бинарь собран без -ldflags.
func (b Build) Dev() bool { return b.Version == "dev" }

func (b Build) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", b.Service, b.Version, b.Commit, b.Date)
}

// Fields — поля для стартовой записи лога.
func (b Build) Fields() log.Fields {
	return log.Fields{
		"service":    b.Service,
		"version":    b.Version,
		"commit":     b.Commit,
		"build_date": b.Date,
	}
}
