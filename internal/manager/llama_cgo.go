//go:build llama

package manager

// rpath of $ORIGIN lets the loader find libllama.so next to the binary in
// ./bin; -L points the linker there at build time.
/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"
