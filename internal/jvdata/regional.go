package jvdata

// Regional-only record kinds. The regional vendor shares the central
// byte layouts for the common kinds; these three have no central
// counterpart.
//
// HA replaces the central HR for regional payouts: the race day is a
// single eight-digit date and the payout hits form one undifferentiated
// entry list, sections separated by space padding. The entry position
// is part of the row identity because the same combination string
// reappears across bet-type sections.

var regionalRaceKey = []string{"KaisaiDate", "JyoCD", "Kaiji", "Nichiji", "RaceNum"}

func regionalLayouts() []*Layout {
	return []*Layout{haLayout(), nuLayout(), ncLayout()}
}

// HA: regional payouts.
func haLayout() *Layout {
	return &Layout{Kind: "HA", Length: 1032, Key: regionalRaceKey,
		Fields: fields(recordHeader(), []FieldDef{
			f("KaisaiDate", 11, 8, Text),
			f("JyoCD", 19, 2, Text),
			f("Kaiji", 21, 2, Int),
			f("Nichiji", 23, 2, Int),
			f("RaceNum", 25, 2, Int),
			f("TorokuTosu", 27, 2, Int),
			f("SyussoTosu", 29, 2, Int),
			f("HatsubaiFlag", 31, 1, Text),
		}),
		Groups: []GroupDef{
			{Name: "Harai", Offset: 63, Unit: 15, Count: 64,
				Fields: []FieldDef{
					f("Kumi", 0, 2, Text),
					f("Pay", 2, 13, Int),
				},
				IndexColumn: "EntryNum",
				Key:         []string{"EntryNum"}},
		}}
}

// NU: regional horse registry.
func nuLayout() *Layout {
	return &Layout{Kind: "NU", Length: 66, Key: []string{"UmaID"},
		Fields: []FieldDef{
			f("RecordSpec", 0, 2, Text),
			f("UmaID", 2, 10, Text),
			f("TorokuNum", 12, 10, Text),
			f("BirthDate", 38, 8, Text),
			f("Bamei", 46, 18, Text),
		}}
}

// NC: regional track master.
func ncLayout() *Layout {
	return &Layout{Kind: "NC", Length: 145, Key: []string{"JyoCD"},
		Fields: fields(recordHeader(), []FieldDef{
			f("JyoCD", 11, 2, Text),
			f("JyoName", 13, 20, Text),
			f("JyoNameRyaku", 33, 20, Text),
			f("JyoNameEng", 53, 40, Text),
			f("Address", 93, 40, Text),
			f("TelNum", 133, 10, Text),
		})}
}
