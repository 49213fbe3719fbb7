package sources

// Legacy reads the historical talks archive. It is the most complete source
// and is processed first, so its values win every fill-if-null contest.
func Legacy(path string) Result {
	res := Result{Source: SourceLegacy}

	var doc struct {
		Talks []sourceTalk `json:"talks"`
	}
	if err := readJSONFile(path, &doc); err != nil {
		res.Err = err
		return res
	}

	for _, st := range doc.Talks {
		if st.Title == "" {
			continue
		}
		res.Talks = append(res.Talks, st.toTalk())
	}
	return res
}

// Manual reads the manually curated talks file. It is processed last: under
// the default fill policy its practical priority is limited to talks and
// events no other source mentions.
func Manual(path string) Result {
	res := Result{Source: SourceManual}

	var doc struct {
		Talks []sourceTalk `json:"talks"`
	}
	if err := readJSONFile(path, &doc); err != nil {
		res.Err = err
		return res
	}

	for _, st := range doc.Talks {
		if st.Title == "" {
			continue
		}
		res.Talks = append(res.Talks, st.toTalk())
	}
	return res
}
