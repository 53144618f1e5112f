// Command basicserve is a small HTTP front end around the interpreter: it
// accepts a POST of BASIC source and runs it against an in-memory console
// and filesystem, one request per program. It is REPL-adjacent tooling
// living outside the core packages, not a language feature.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/gorilla/mux"
)

var listen = flag.String("listen", ":8080", "listen address")

func main() {
	flag.Parse()

	rtr := mux.NewRouter()
	rtr.HandleFunc("/run", runHandler).Methods(http.MethodPost).Name("run")

	log.Printf("listening on %q...", *listen)
	log.Fatal(http.ListenAndServe(*listen, rtr))
}
