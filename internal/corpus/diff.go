package corpus

// IndexDiff describes how the vocabulary changed between two index
// snapshots.
type IndexDiff struct {
	// AddedWords are indexed in new but not in old, sorted.
	AddedWords []string
	// RemovedWords are indexed in old but not in new, sorted.
	RemovedWords []string
	// ClipDelta is the change in total indexed clips.
	ClipDelta int
}

// Changed reports whether the two snapshots differ at all.
func (d IndexDiff) Changed() bool {
	return len(d.AddedWords) > 0 || len(d.RemovedWords) > 0 || d.ClipDelta != 0
}

// Diff compares two index snapshots. Both indexes keep their words sorted,
// so a single merge pass finds additions and removals.
func Diff(old, new *Index) IndexDiff {
	d := IndexDiff{ClipDelta: new.stats.Clips - old.stats.Clips}

	i, j := 0, 0
	for i < len(old.words) && j < len(new.words) {
		switch {
		case old.words[i] == new.words[j]:
			i++
			j++
		case old.words[i] < new.words[j]:
			d.RemovedWords = append(d.RemovedWords, old.words[i])
			i++
		default:
			d.AddedWords = append(d.AddedWords, new.words[j])
			j++
		}
	}
	d.RemovedWords = append(d.RemovedWords, old.words[i:]...)
	d.AddedWords = append(d.AddedWords, new.words[j:]...)

	return d
}
