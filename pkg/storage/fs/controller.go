package fs

import (
	"net/http"
	"os"
	"strings"

	"github.com/gorilla/mux"
)

// Controller serves a Store's files under prefix (for example /uploads).
type Controller struct {
	prefix string
	root   string
}

func NewController(prefix string, store *Store) *Controller {
	return &Controller{prefix: "/" + strings.Trim(prefix, "/"), root: store.Root()}
}

func (c *Controller) Key() string {
	return c.prefix
}

func (c *Controller) Register(r *mux.Router) {
	files := http.StripPrefix(c.prefix+"/", http.FileServer(noDirFS{http.Dir(c.root)}))
	r.PathPrefix(c.prefix + "/").Handler(files).Methods(http.MethodGet, http.MethodHead)
}

// noDirFS hides directory listings.
type noDirFS struct {
	fs http.FileSystem
}

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if st.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
