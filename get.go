package yakushima

// Get implements spec §4.7: look up key in the tree rooted at t, returning a
// copy of the stored value. WarnNotExist means no such key; any internal
// retry signal is absorbed before returning.
func Get(t *Tree, key []byte) ([]byte, Status) {
	return getRec(t.loadRoot, key)
}

func getRec(source rootSource, key []byte) ([]byte, Status) {
	slice, tag, rest := sliceKey(key)

	for {
		b, vB, status := findBorder(source, slice, tag)
		switch {
		case status == OKRootIsNull:
			return nil, WarnNotExist
		case status.isRetry():
			continue
		case status != OK:
			return nil, status
		}

		lov, storedTag, v2, found := b.getLvOf(slice, tag)
		if !vB.sameSplit(v2) {
			continue
		}
		if !found {
			return nil, WarnNotExist
		}
		if storedTag == lengthTagContinues {
			return getRec(layerRootSource(b, slice, tag), rest)
		}

		out := make([]byte, len(lov.value.data))
		copy(out, lov.value.data)
		return out, OK
	}
}
