package codegen

import "strings"

// mangleReplacer implements spec §4.8's (deliberately non-reversible, per
// spec §9's open question) name-mangling scheme: "::", "<", ">", ",", " "
// become "_L_", "_R_", "_C_", "_S_" respectively so a source-language
// function name becomes a valid LLVM symbol name.
var mangleReplacer = strings.NewReplacer(
	"::", "_L_",
	"<", "_R_",
	">", "_C_",
	",", "_S_",
	" ", "_S_",
)

// Mangle produces the LLVM symbol name for a declared function name.
func Mangle(name string) string {
	return mangleReplacer.Replace(name)
}

// disambiguate appends a suffix derived from id to a mangled name that
// collides with an earlier declaration of a different signature (spec
// §4.8: "the later declaration gets a disambiguating suffix derived from
// its id").
func disambiguate(mangled string, id uint32) string {
	return mangled + "__dup" + uintToDecimal(id)
}

func uintToDecimal(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
