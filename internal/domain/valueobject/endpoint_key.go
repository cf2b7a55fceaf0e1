package valueobject

import (
	"regexp"
	"strings"
)

var (
	numericSegment = regexp.MustCompile(`^\d+$`)
	uuidSegment    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	hexIDSegment   = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
)

// EndpointKey идентифицирует endpoint: HTTP метод + нормализованный маршрут
type EndpointKey struct {
	Method string
	Route  string
}

// NewEndpointKey нормализует путь: идентификаторы заменяются на ":id",
// query string и завершающий слеш отбрасываются
func NewEndpointKey(method, path string) EndpointKey {
	return EndpointKey{
		Method: strings.ToUpper(strings.TrimSpace(method)),
		Route:  NormalizeRoute(path),
	}
}

// NormalizeRoute сводит конкретные пути к шаблону маршрута
func NormalizeRoute(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if path == "" || path == "/" {
		return "/"
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if numericSegment.MatchString(seg) || uuidSegment.MatchString(seg) || hexIDSegment.MatchString(seg) {
			segments[i] = ":id"
		}
	}

	return "/" + strings.Join(segments, "/")
}

// String возвращает ключ в виде "GET /leads/:id"
func (k EndpointKey) String() string {
	return k.Method + " " + k.Route
}
