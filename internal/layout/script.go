package layout

import "golang.org/x/text/language"

// scripts written without spaces between words
var noSpaceScripts = map[string]bool{
	"Jpan": true,
	"Hira": true,
	"Kana": true,
	"Hani": true,
	"Hans": true,
	"Hant": true,
	"Thai": true,
	"Laoo": true,
	"Khmr": true,
	"Mymr": true,
}

// PolicyFor picks the wrapping policy from a BCP 47 language code.
// Unparseable codes wrap on spaces.
func PolicyFor(code string) Policy {
	tag, err := language.Parse(code)
	if err != nil {
		return PolicySpaces
	}
	script, _ := tag.Script()
	if noSpaceScripts[script.String()] {
		return PolicyTokens
	}
	return PolicySpaces
}
