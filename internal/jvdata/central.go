package jvdata

import "strconv"

// Layout tables for the central feed. Offsets follow the vendor's
// fixed-length record reference; lengths include the trailing CR LF.

// numbered expands a flattened fixed-stride run into suffixed fields
// (Honsyokin1..Honsyokin7 and the like).
func numbered(name string, start, length, stride, count int, c FieldCodec, scale int) []FieldDef {
	out := make([]FieldDef, count)
	for i := 0; i < count; i++ {
		out[i] = FieldDef{
			Name:   name + strconv.Itoa(i+1),
			Offset: start + i*stride,
			Length: length,
			Codec:  c,
			Scale:  scale,
		}
	}
	return out
}

// statRun expands a run of placing-count fields that share a prefix.
// The vendor packs six placings per block; only the win count leads
// each block, which is what the accumulated tables keep.
func statRun(prefix string, start, stride int, suffixes []string) []FieldDef {
	out := make([]FieldDef, len(suffixes))
	for i, s := range suffixes {
		out[i] = f(prefix+s, start+i*stride, 3, Int)
	}
	return out
}

var raceKeyHappyo = append(append([]string{}, raceKey...), "HappyoTime")

func centralLayouts() []*Layout {
	return []*Layout{
		raLayout(), seLayout(), hrLayout(),
		h1Layout(), h6Layout(),
		o1Layout(), o2Layout(), o3Layout(), o4Layout(), o5Layout(), o6Layout(),
		umLayout(), ksLayout(), chLayout(), bnLayout(), brLayout(),
		hnLayout(), skLayout(), hsLayout(), hyLayout(), btLayout(), csLayout(),
		rcLayout(), ysLayout(), tkLayout(), ckLayout(),
		weLayout(), whLayout(), avLayout(), jcLayout(), tcLayout(), ccLayout(), jgLayout(),
		wcLayout(), hcLayout(), wfLayout(), tmLayout(), dmLayout(),
	}
}

// RA: race detail.
func raLayout() *Layout {
	fs := fields(recordHeader(), raceIDFields(), []FieldDef{
		f("YoubiCD", 27, 1, Text),
		f("TokuNum", 28, 4, Text),
		f("Hondai", 32, 60, Text),
		f("Fukudai", 92, 60, Text),
		f("Kakko", 152, 60, Text),
		f("HondaiEng", 212, 120, Text),
		f("FukudaiEng", 332, 120, Text),
		f("KakkoEng", 452, 120, Text),
		f("Ryakusyo10", 572, 20, Text),
		f("Ryakusyo6", 592, 12, Text),
		f("Ryakusyo3", 604, 6, Text),
		f("Kubun", 610, 1, Text),
		f("Nkai", 611, 3, Text),
		f("GradeCD", 614, 1, Text),
		f("GradeCDBefore", 615, 1, Text),
		f("SyubetuCD", 616, 2, Text),
		f("KigoCD", 618, 3, Text),
		f("JyuryoCD", 621, 1, Text),
		f("JyokenCD1", 622, 3, Text),
		f("JyokenCD2", 625, 3, Text),
		f("JyokenCD3", 628, 3, Text),
		f("JyokenCD4", 631, 3, Text),
		f("JyokenCD5", 634, 3, Text),
		f("JyokenName", 637, 60, Text),
		f("Kyori", 697, 4, Int),
		f("KyoriBefore", 701, 4, Int),
		f("TrackCD", 705, 2, Text),
		f("TrackCDBefore", 707, 2, Text),
		f("CourseKubunCD", 709, 2, Text),
		f("CourseKubunCDBefore", 711, 2, Text),
	},
		numbered("Honsyokin", 713, 8, 8, 7, Int, 0),
		numbered("HonsyokinBefore", 769, 8, 8, 5, Int, 0),
		numbered("Fukasyokin", 809, 8, 8, 5, Int, 0),
		numbered("FukasyokinBefore", 849, 8, 8, 3, Int, 0),
		[]FieldDef{
			f("HassoTime", 873, 4, Text),
			f("HassoTimeBefore", 877, 4, Text),
			f("TorokuTosu", 881, 2, Int),
			f("SyussoTosu", 883, 2, Int),
			f("NyusenTosu", 885, 2, Int),
			f("TenkoCD", 887, 1, Text),
			f("SibaBabaCD", 888, 1, Text),
			f("DirtBabaCD", 889, 1, Text),
		},
		numbered("LapTime", 890, 3, 3, 25, Real, 1),
		[]FieldDef{
			fr("SyogaiMileTime", 965, 4, 1),
			fr("HaronTimeS3", 969, 3, 1),
			fr("HaronTimeS4", 972, 3, 1),
			fr("HaronTimeL3", 975, 3, 1),
			fr("HaronTimeL4", 978, 3, 1),
		},
	)
	// Four corner-passing blocks: corner number, lap count, order string.
	for i := 0; i < 4; i++ {
		base := 981 + i*72
		n := strconv.Itoa(i + 1)
		fs = append(fs,
			f("Corner"+n, base, 1, Int),
			f("Syukaisu"+n, base+1, 1, Int),
			f("Jyuni"+n, base+2, 70, Text),
		)
	}
	fs = append(fs, f("RecordUpKubun", 1269, 1, Text))
	return &Layout{Kind: "RA", Length: 1272, Fields: fs, Key: raceKey}
}

// SE: result per runner.
func seLayout() *Layout {
	fs := fields(recordHeader(), raceIDFields(), []FieldDef{
		f("Wakuban", 27, 1, Int),
		f("Umaban", 28, 2, Int),
		f("KettoNum", 30, 10, Text),
		f("Bamei", 40, 36, Text),
		f("UmaKigoCD", 76, 2, Text),
		f("SexCD", 78, 1, Text),
		f("HinsyuCD", 79, 1, Text),
		f("KeiroCD", 80, 2, Text),
		f("Barei", 82, 2, Int),
		f("TozaiCD", 84, 1, Text),
		f("ChokyosiCode", 85, 5, Text),
		f("ChokyosiRyakusyo", 90, 8, Text),
		f("BanusiCode", 98, 6, Text),
		f("BanusiName", 104, 64, Text),
		f("Fukusyoku", 168, 60, Text),
		fr("Futan", 288, 3, 1),
		fr("FutanBefore", 291, 3, 1),
		f("Blinker", 294, 1, Text),
		f("KisyuCode", 296, 5, Text),
		f("KisyuCodeBefore", 301, 5, Text),
		f("KisyuRyakusyo", 306, 8, Text),
		f("KisyuRyakusyoBefore", 314, 8, Text),
		f("MinaraiCD", 322, 1, Text),
		f("MinaraiCDBefore", 323, 1, Text),
		f("BaTaijyu", 324, 3, Int),
		f("ZogenFugo", 327, 1, Text),
		f("ZogenSa", 328, 3, Int),
		f("IJyoCD", 331, 1, Text),
		f("NyusenJyuni", 332, 2, Int),
		f("KakuteiJyuni", 334, 2, Int),
		f("DochakuKubun", 336, 1, Text),
		f("DochakuTosu", 337, 1, Int),
		f("Time", 338, 4, Text),
		f("ChakusaCD", 342, 3, Text),
		f("ChakusaCDP", 345, 3, Text),
		f("ChakusaCDPP", 348, 3, Text),
		f("Jyuni1c", 351, 2, Int),
		f("Jyuni2c", 353, 2, Int),
		f("Jyuni3c", 355, 2, Int),
		f("Jyuni4c", 357, 2, Int),
		fr("Odds", 359, 4, 1),
		f("Ninki", 363, 2, Int),
		f("Honsyokin", 365, 8, Int),
		f("Fukasyokin", 373, 8, Int),
		fr("TimeL4", 387, 3, 1),
		fr("TimeL3", 390, 3, 1),
	})
	// First-three-home rivals, blank for the winner's own row.
	for i := 0; i < 3; i++ {
		base := 393 + i*46
		n := strconv.Itoa(i + 1)
		fs = append(fs,
			f("AiteKettoNum"+n, base, 10, Text),
			f("AiteBamei"+n, base+10, 36, Text),
		)
	}
	fs = append(fs,
		f("TimeDiff", 531, 4, Text),
		f("RecordUpKubun", 535, 1, Text),
		f("DMKubun", 536, 1, Text),
		f("DMTime", 537, 5, Text),
		f("DMGosaP", 542, 4, Text),
		f("DMGosaM", 546, 4, Text),
		f("DMJyuni", 550, 2, Int),
		f("KyakusituKubun", 552, 1, Text),
	)
	return &Layout{Kind: "SE", Length: 555, Fields: fs,
		Key: append(append([]string{}, raceKey...), "Umaban")}
}

// payGroup is one payout hit list inside HR.
func payGroup(name string, offset, unit, count, keyLen, payLen, ninkiLen int, byUmaban bool) GroupDef {
	keyName := "Kumi"
	keyCodec := Text
	if byUmaban {
		keyName, keyCodec = "Umaban", Int
	}
	return GroupDef{
		Name: name, Offset: offset, Unit: unit, Count: count,
		Fields: []FieldDef{
			{Name: keyName, Offset: 0, Length: keyLen, Codec: keyCodec},
			f("Pay", keyLen, payLen, Int),
			f("Ninki", keyLen+payLen, ninkiLen, Int),
		},
		Key: []string{keyName},
	}
}

// HR: payouts.
func hrLayout() *Layout {
	fs := fields(recordHeader(), raceIDFields(), []FieldDef{
		f("TorokuTosu", 27, 2, Int),
		f("SyussoTosu", 29, 2, Int),
		f("FuseirituFlagTansyo", 31, 1, Text),
		f("FuseirituFlagFukusyo", 32, 1, Text),
		f("FuseirituFlagWakuren", 33, 1, Text),
		f("FuseirituFlagUmaren", 34, 1, Text),
		f("FuseirituFlagWide", 35, 1, Text),
		f("FuseirituFlagUmatan", 37, 1, Text),
		f("FuseirituFlagSanrenpuku", 38, 1, Text),
		f("FuseirituFlagSanrentan", 39, 1, Text),
		f("TokubaraiFlagTansyo", 40, 1, Text),
		f("TokubaraiFlagFukusyo", 41, 1, Text),
		f("TokubaraiFlagWakuren", 42, 1, Text),
		f("TokubaraiFlagUmaren", 43, 1, Text),
		f("TokubaraiFlagWide", 44, 1, Text),
		f("TokubaraiFlagUmatan", 46, 1, Text),
		f("TokubaraiFlagSanrenpuku", 47, 1, Text),
		f("TokubaraiFlagSanrentan", 48, 1, Text),
		f("HenkanFlagTansyo", 49, 1, Text),
		f("HenkanFlagFukusyo", 50, 1, Text),
		f("HenkanFlagWakuren", 51, 1, Text),
		f("HenkanFlagUmaren", 52, 1, Text),
		f("HenkanFlagWide", 53, 1, Text),
		f("HenkanFlagUmatan", 55, 1, Text),
		f("HenkanFlagSanrenpuku", 56, 1, Text),
		f("HenkanFlagSanrentan", 57, 1, Text),
		f("HenkanUma", 58, 28, Text),
		f("HenkanWaku", 86, 8, Text),
		f("HenkanDowaku", 94, 8, Text),
	})
	return &Layout{Kind: "HR", Length: 719, Fields: fs, Key: raceKey,
		Groups: []GroupDef{
			payGroup("Tansyo", 102, 13, 3, 2, 9, 2, true),
			payGroup("Fukusyo", 141, 13, 5, 2, 9, 2, true),
			payGroup("Wakuren", 206, 13, 3, 2, 9, 2, false),
			payGroup("Umaren", 245, 16, 3, 4, 9, 3, false),
			payGroup("Wide", 293, 16, 7, 4, 9, 3, false),
			payGroup("Umatan", 453, 16, 6, 4, 9, 3, false),
			payGroup("Sanrenpuku", 549, 18, 3, 6, 9, 3, false),
			payGroup("Sanrentan", 603, 19, 6, 6, 9, 4, false),
		}}
}

// voteGroup is one vote-count list inside H1/H6.
func voteGroup(name string, offset, unit, count, keyLen, ninkiLen int, byUmaban bool) GroupDef {
	keyName := "Kumi"
	keyCodec := Text
	if byUmaban {
		keyName, keyCodec = "Umaban", Int
	}
	return GroupDef{
		Name: name, Offset: offset, Unit: unit, Count: count,
		Fields: []FieldDef{
			{Name: keyName, Offset: 0, Length: keyLen, Codec: keyCodec},
			f("Hyo", keyLen, 11, Int),
			f("Ninki", keyLen+11, ninkiLen, Int),
		},
		Key: []string{keyName},
	}
}

// H1: vote counts for the seven classic bet types.
func h1Layout() *Layout {
	fs := fields(recordHeader(), raceIDFields(), []FieldDef{
		f("TorokuTosu", 27, 2, Int),
		f("SyussoTosu", 29, 2, Int),
		f("HatsubaiFlagTansyo", 31, 1, Text),
		f("HatsubaiFlagFukusyo", 32, 1, Text),
		f("HatsubaiFlagWakuren", 33, 1, Text),
		f("HatsubaiFlagUmaren", 34, 1, Text),
		f("HatsubaiFlagWide", 35, 1, Text),
		f("HatsubaiFlagUmatan", 36, 1, Text),
		f("HatsubaiFlagSanrenpuku", 37, 1, Text),
		f("FukuChakubaraiKey", 38, 1, Text),
		f("HenkanUma", 39, 28, Text),
		f("HenkanWaku", 67, 8, Text),
		f("HenkanDowaku", 75, 8, Text),
		f("HyosuTotalTansyo", 28799, 11, Int),
		f("HyosuTotalFukusyo", 28810, 11, Int),
		f("HyosuTotalWakuren", 28821, 11, Int),
		f("HyosuTotalUmaren", 28832, 11, Int),
		f("HyosuTotalWide", 28843, 11, Int),
		f("HyosuTotalUmatan", 28854, 11, Int),
		f("HyosuTotalSanrenpuku", 28865, 11, Int),
		f("HenkanHyosuTotalTansyo", 28876, 11, Int),
		f("HenkanHyosuTotalFukusyo", 28887, 11, Int),
		f("HenkanHyosuTotalWakuren", 28898, 11, Int),
		f("HenkanHyosuTotalUmaren", 28909, 11, Int),
		f("HenkanHyosuTotalWide", 28920, 11, Int),
		f("HenkanHyosuTotalUmatan", 28931, 11, Int),
		f("HenkanHyosuTotalSanrenpuku", 28942, 11, Int),
	})
	return &Layout{Kind: "H1", Length: 28955, Fields: fs, Key: raceKey,
		Groups: []GroupDef{
			voteGroup("Tansyo", 83, 15, 28, 2, 2, true),
			voteGroup("Fukusyo", 503, 15, 28, 2, 2, true),
			voteGroup("Wakuren", 923, 15, 36, 2, 2, false),
			voteGroup("Umaren", 1463, 18, 153, 4, 3, false),
			voteGroup("Wide", 4217, 18, 153, 4, 3, false),
			voteGroup("Umatan", 6971, 18, 306, 4, 3, false),
			voteGroup("Sanrenpuku", 12479, 20, 816, 6, 3, false),
		}}
}

// H6: trifecta vote counts.
func h6Layout() *Layout {
	fs := fields(recordHeader(), raceIDFields(), []FieldDef{
		f("TorokuTosu", 27, 2, Int),
		f("SyussoTosu", 29, 2, Int),
		f("HatsubaiFlagSanrentan", 31, 1, Text),
		f("HenkanUma", 32, 18, Text),
		f("HyosuTotalSanrentan", 102866, 11, Int),
		f("HenkanHyosuTotalSanrentan", 102877, 11, Int),
	})
	return &Layout{Kind: "H6", Length: 102890, Fields: fs, Key: raceKey,
		Groups: []GroupDef{
			voteGroup("Sanrentan", 50, 21, 4896, 6, 4, false),
		}}
}

// oddsHead is the shared announce-time prefix of the odds kinds.
func oddsHead(flags ...FieldDef) []FieldDef {
	return fields(recordHeader(), raceIDFields(), []FieldDef{
		f("HappyoTime", 27, 8, Text),
		f("TorokuTosu", 35, 2, Int),
		f("SyussoTosu", 37, 2, Int),
	}, flags)
}

// O1: win, place and bracket-quinella odds.
func o1Layout() *Layout {
	fs := append(oddsHead(
		f("HatsubaiFlagTansyo", 39, 1, Text),
		f("HatsubaiFlagFukusyo", 40, 1, Text),
		f("HatsubaiFlagWakuren", 41, 1, Text),
		f("FukuChakubaraiKey", 42, 1, Text),
	),
		f("HyosuTotalTansyo", 927, 11, Int),
		f("HyosuTotalFukusyo", 938, 11, Int),
		f("HyosuTotalWakuren", 949, 11, Int),
	)
	return &Layout{Kind: "O1", Length: 962, Fields: fs, Key: raceKeyHappyo,
		Groups: []GroupDef{
			{Name: "Tansyo", Offset: 43, Unit: 8, Count: 28,
				Fields: []FieldDef{
					f("Umaban", 0, 2, Int),
					fr("Odds", 2, 4, 1),
					f("Ninki", 6, 2, Int),
				},
				Key: []string{"Umaban"}},
			{Name: "Fukusyo", Offset: 267, Unit: 12, Count: 28,
				Fields: []FieldDef{
					f("Umaban", 0, 2, Int),
					fr("OddsLow", 2, 4, 1),
					fr("OddsHigh", 6, 4, 1),
					f("Ninki", 10, 2, Int),
				},
				Key: []string{"Umaban"}},
			{Name: "Wakuren", Offset: 603, Unit: 9, Count: 36,
				Fields: []FieldDef{
					f("Kumi", 0, 2, Text),
					fr("Odds", 2, 5, 1),
					f("Ninki", 7, 2, Int),
				},
				Key: []string{"Kumi"}},
		}}
}

// pairOdds builds the single-group layouts O2/O4/O5/O6.
func pairOdds(kind, group string, length, flagOff, unit, count, kumiLen, oddsLen, ninkiLen, totalOff int) *Layout {
	fs := append(oddsHead(f("HatsubaiFlag"+group, flagOff, 1, Text)),
		f("HyosuTotal"+group, totalOff, 11, Int))
	return &Layout{Kind: kind, Length: length, Fields: fs, Key: raceKeyHappyo,
		Groups: []GroupDef{
			{Name: group, Offset: 40, Unit: unit, Count: count,
				Fields: []FieldDef{
					f("Kumi", 0, kumiLen, Text),
					fr("Odds", kumiLen, oddsLen, 1),
					f("Ninki", kumiLen+oddsLen, ninkiLen, Int),
				},
				Key: []string{"Kumi"}},
		}}
}

func o2Layout() *Layout { return pairOdds("O2", "Umaren", 2042, 39, 13, 153, 4, 6, 3, 2029) }

// O3: quinella-place carries an odds range per combination.
func o3Layout() *Layout {
	fs := append(oddsHead(f("HatsubaiFlagWide", 39, 1, Text)),
		f("HyosuTotalWide", 2641, 11, Int))
	return &Layout{Kind: "O3", Length: 2654, Fields: fs, Key: raceKeyHappyo,
		Groups: []GroupDef{
			{Name: "Wide", Offset: 40, Unit: 17, Count: 153,
				Fields: []FieldDef{
					f("Kumi", 0, 4, Text),
					fr("OddsLow", 4, 5, 1),
					fr("OddsHigh", 9, 5, 1),
					f("Ninki", 14, 3, Int),
				},
				Key: []string{"Kumi"}},
		}}
}

func o4Layout() *Layout { return pairOdds("O4", "Umatan", 4031, 39, 13, 306, 4, 6, 3, 4018) }
func o5Layout() *Layout {
	return pairOdds("O5", "Sanrenpuku", 12293, 39, 15, 816, 6, 6, 3, 12280)
}
func o6Layout() *Layout {
	return pairOdds("O6", "Sanrentan", 83285, 39, 17, 4896, 6, 7, 4, 83272)
}

// chakukaisuMain is the surface/direction/going placing-count block
// shared by UM and CK.
var chakukaisuMain = []string{
	"Sogo", "Chuo",
	"SibaChoku", "SibaMigi", "SibaHidari",
	"DirtChoku", "DirtMigi", "DirtHidari", "Syogai",
	"SibaRyo", "SibaYaya", "SibaOmo", "SibaFuryo",
	"DirtRyo", "DirtYaya", "DirtOmo", "DirtFuryo",
	"SyogaiRyo", "SyogaiYaya", "SyogaiOmo", "SyogaiFuryo",
}

// UM: horse master.
func umLayout() *Layout {
	fs := fields(recordHeader(), []FieldDef{
		f("KettoNum", 11, 10, Text),
		f("DelKubun", 21, 1, Text),
		f("RegDate", 22, 8, Text),
		f("DelDate", 30, 8, Text),
		f("BirthDate", 38, 8, Text),
		f("Bamei", 46, 36, Text),
		f("BameiKana", 82, 36, Text),
		f("BameiEng", 118, 60, Text),
		f("ZaikyuFlag", 178, 1, Text),
		f("UmaKigoCD", 198, 2, Text),
		f("SexCD", 200, 1, Text),
		f("HinsyuCD", 201, 1, Text),
		f("KeiroCD", 202, 2, Text),
	})
	// Three-generation pedigree, fourteen slots.
	for i := 0; i < 14; i++ {
		base := 204 + i*46
		n := strconv.Itoa(i + 1)
		fs = append(fs,
			f("Ketto3InfoHansyokuNum"+n, base, 10, Text),
			f("Ketto3InfoBamei"+n, base+10, 36, Text),
		)
	}
	fs = append(fs,
		f("TozaiCD", 848, 1, Text),
		f("ChokyosiCode", 849, 5, Text),
		f("ChokyosiRyakusyo", 854, 8, Text),
		f("SyotaiName", 862, 20, Text),
		f("BreederCode", 882, 8, Text),
		f("BreederName", 890, 72, Text),
		f("SanchiName", 962, 20, Text),
		f("BanusiCode", 982, 6, Text),
		f("BanusiName", 988, 64, Text),
		f("HonsyokinHeichi", 1052, 9, Int),
		f("HonsyokinSyogai", 1061, 9, Int),
		f("FukasyokinHeichi", 1070, 9, Int),
		f("FukasyokinSyogai", 1079, 9, Int),
		f("SyutokuHeichi", 1088, 9, Int),
		f("SyutokuSyogai", 1097, 9, Int),
	)
	fs = append(fs, statRun("Chakukaisu", 1106, 18, chakukaisuMain)...)
	fs = append(fs, statRun("Chakukaisu", 1484, 18, []string{
		"Siba16Under", "Siba22Under", "Siba22Over",
		"Dirt16Under", "Dirt22Under", "Dirt22Over",
	})...)
	fs = append(fs,
		f("Kyakusitu", 1592, 3, Int),
		f("RaceCount", 1604, 3, Int),
	)
	return &Layout{Kind: "UM", Length: 1609, Fields: fs, Key: []string{"KettoNum"}}
}

// KS: jockey master. The career blocks stay opaque the way the
// accumulated tables keep them.
func ksLayout() *Layout {
	return &Layout{Kind: "KS", Length: 4173, Key: []string{"KisyuCode"},
		Fields: fields(recordHeader(), []FieldDef{
			f("KisyuCode", 11, 5, Text),
			f("DelKubun", 16, 1, Text),
			f("IssueDate", 17, 8, Text),
			f("DelDate", 25, 8, Text),
			f("BirthDate", 33, 8, Text),
			f("KisyuName", 41, 34, Text),
			f("KisyuNameKana", 109, 30, Text),
			f("KisyuRyakusyo", 139, 8, Text),
			f("KisyuNameEng", 147, 80, Text),
			f("SexKubun", 227, 1, Text),
			f("SikakuCD", 228, 1, Text),
			f("MinaraiCD", 229, 1, Text),
			f("TozaiCD", 230, 1, Text),
			f("SyotaiName", 231, 20, Text),
			f("ChokyosiCode", 251, 5, Text),
			f("ChokyosiRyakusyo", 256, 8, Text),
			f("HatsuKijyoInfo", 264, 67, Text),
			f("HatsuSyoriInfo", 398, 64, Text),
			f("SaikinJyusyoInfo", 526, 163, Text),
			f("SeisekiInfo", 1015, 1052, Text),
		})}
}

// CH: trainer master.
func chLayout() *Layout {
	return &Layout{Kind: "CH", Length: 3862, Key: []string{"ChokyosiCode"},
		Fields: fields(recordHeader(), []FieldDef{
			f("ChokyosiCode", 11, 5, Text),
			f("DelKubun", 16, 1, Text),
			f("IssueDate", 17, 8, Text),
			f("DelDate", 25, 8, Text),
			f("BirthDate", 33, 8, Text),
			f("ChokyosiName", 41, 34, Text),
			f("ChokyosiNameKana", 75, 30, Text),
			f("ChokyosiRyakusyo", 105, 8, Text),
			f("ChokyosiNameEng", 113, 80, Text),
			f("SexKubun", 193, 1, Text),
			f("TozaiCD", 194, 1, Text),
			f("SyotaiName", 195, 20, Text),
			f("SaikinJyusyoInfo", 215, 163, Text),
			f("SeisekiInfo", 704, 1052, Text),
		})}
}

// BN: owner master.
func bnLayout() *Layout {
	return &Layout{Kind: "BN", Length: 477, Key: []string{"BanusiCode"},
		Fields: fields(recordHeader(), []FieldDef{
			f("BanusiCode", 11, 6, Text),
			f("BanusiNameHojinkaku", 17, 64, Text),
			f("BanusiName", 81, 64, Text),
			f("BanusiNameKana", 145, 50, Text),
			f("BanusiNameEng", 195, 100, Text),
			f("Fukusyoku", 295, 60, Text),
			f("SeisekiInfo", 355, 60, Text),
		})}
}

// BR: breeder master.
func brLayout() *Layout {
	return &Layout{Kind: "BR", Length: 545, Key: []string{"BreederCode"},
		Fields: fields(recordHeader(), []FieldDef{
			f("BreederCode", 11, 8, Text),
			f("BreederNameHojinkaku", 19, 72, Text),
			f("BreederName", 91, 72, Text),
			f("BreederNameKana", 163, 72, Text),
			f("BreederNameEng", 235, 168, Text),
			f("Address", 403, 20, Text),
			f("SeisekiInfo", 423, 60, Text),
		})}
}

// HN: broodmare / stallion registry.
func hnLayout() *Layout {
	return &Layout{Kind: "HN", Length: 251, Key: []string{"HansyokuNum"},
		Fields: fields(recordHeader(), []FieldDef{
			f("HansyokuNum", 11, 10, Text),
			f("KettoNum", 29, 10, Text),
			f("Bamei", 40, 36, Text),
			f("BameiKana", 76, 40, Text),
			f("BameiEng", 116, 80, Text),
			f("BirthYear", 196, 4, Int),
			f("SexCD", 200, 1, Text),
			f("HinsyuCD", 201, 1, Text),
			f("KeiroCD", 202, 2, Text),
			f("MochikomiKubun", 204, 1, Text),
			f("ImportYear", 205, 4, Int),
			f("SanchiName", 209, 20, Text),
			f("FNum", 229, 10, Text),
			f("MNum", 239, 10, Text),
		})}
}

// SK: foal registry.
func skLayout() *Layout {
	fs := fields(recordHeader(), []FieldDef{
		f("KettoNum", 11, 10, Text),
		f("BirthDate", 21, 8, Text),
		f("SexCD", 29, 1, Text),
		f("HinsyuCD", 30, 1, Text),
		f("KeiroCD", 31, 2, Text),
		f("MochikomiKubun", 33, 1, Text),
		f("ImportYear", 34, 4, Int),
		f("BreederCode", 38, 8, Text),
		f("SanchiName", 46, 20, Text),
	}, numbered("Ketto3HansyokuNum", 66, 10, 10, 14, Text, 0))
	return &Layout{Kind: "SK", Length: 208, Fields: fs, Key: []string{"KettoNum"}}
}

// HS: sale transaction.
func hsLayout() *Layout {
	return &Layout{Kind: "HS", Length: 200,
		Key: []string{"KettoNum", "SaleCode", "FromDate"},
		Fields: fields(recordHeader(), []FieldDef{
			f("KettoNum", 11, 10, Text),
			f("FNum", 21, 10, Text),
			f("MNum", 31, 10, Text),
			f("BirthYear", 41, 4, Int),
			f("SaleCode", 45, 6, Text),
			f("SaleHostName", 51, 40, Text),
			f("SaleName", 91, 80, Text),
			f("FromDate", 171, 8, Text),
			f("ToDate", 179, 8, Text),
			f("Barei", 187, 1, Int),
			f("Price", 188, 10, Int),
		})}
}

// HY: horse-name origin.
func hyLayout() *Layout {
	return &Layout{Kind: "HY", Length: 123, Key: []string{"KettoNum"},
		Fields: fields(recordHeader(), []FieldDef{
			f("KettoNum", 11, 10, Text),
			f("Bamei", 21, 36, Text),
			f("Origin", 57, 64, Text),
		})}
}

/// BT: bloodline catalogue.
func btLayout() *Layout {
	return &Layout{Kind: "BT", Length: 6889, Key: []string{"HansyokuNum"},
		Fields: fields(recordHeader(), []FieldDef{
			f("HansyokuNum", 11, 10, Text),
			f("KeitoID", 21, 30, Text),
			f("KeitoName", 51, 36, Text),
			f("KeitoEx", 87, 6800, Text),
		})}
}

// CS: course description.
func csLayout() *Layout {
	return &Layout{Kind: "CS", Length: 6829,
		Key: []string{"JyoCD", "Kyori", "TrackCD", "KaishuDate"},
		Fields: fields(recordHeader(), []FieldDef{
			f("JyoCD", 11, 2, Text),
			f("Kyori", 13, 4, Int),
			f("TrackCD", 17, 2, Text),
			f("KaishuDate", 19, 8, Text),
			f("CourseEx", 27, 6800, Text),
		})}
}

// RC: course records. The race identity sits one byte later than usual
// behind the record-class discriminator.
func rcLayout() *Layout {
	fs := fields(recordHeader(), []FieldDef{
		f("RecInfoKubun", 11, 1, Text),
		f("Year", 12, 4, Int),
		f("MonthDay", 16, 4, Text),
		f("JyoCD", 20, 2, Text),
		f("Kaiji", 22, 2, Int),
		f("Nichiji", 24, 2, Int),
		f("RaceNum", 26, 2, Int),
		f("TokuNum", 28, 4, Text),
		f("Hondai", 32, 60, Text),
		f("GradeCD", 92, 1, Text),
		f("SyubetuCD", 93, 2, Text),
		f("Kyori", 95, 4, Int),
		f("TrackCD", 99, 2, Text),
		f("RecKubun", 101, 1, Text),
		f("RecTime", 102, 4, Text),
		f("TenkoCD", 106, 1, Text),
		f("SibaBabaCD", 107, 1, Text),
		f("DirtBabaCD", 108, 1, Text),
	})
	for i := 0; i < 3; i++ {
		base := 109 + i*130
		n := strconv.Itoa(i + 1)
		fs = append(fs,
			f("HolderKettoNum"+n, base, 10, Text),
			f("HolderBamei"+n, base+10, 36, Text),
			f("HolderUmaKigoCD"+n, base+46, 2, Text),
			f("HolderSexCD"+n, base+48, 1, Text),
			f("HolderChokyosiCode"+n, base+49, 5, Text),
			f("HolderChokyosiName"+n, base+54, 34, Text),
			FieldDef{Name: "HolderFutan" + n, Offset: base + 88, Length: 3, Codec: Real, Scale: 1},
			f("HolderKisyuCode"+n, base+91, 5, Text),
			f("HolderKisyuName"+n, base+96, 34, Text),
		)
	}
	return &Layout{Kind: "RC", Length: 501, Fields: fs,
		Key: []string{"RecInfoKubun", "Year", "MonthDay", "JyoCD", "Kaiji", "Nichiji", "RaceNum"}}
}

// YS: meeting schedule with up to three graded-race notices.
func ysLayout() *Layout {
	fs := fields(recordHeader(), []FieldDef{
		f("Year", 11, 4, Int),
		f("MonthDay", 15, 4, Text),
		f("JyoCD", 19, 2, Text),
		f("Kaiji", 21, 2, Int),
		f("Nichiji", 23, 2, Int),
		f("YoubiCD", 25, 1, Text),
	})
	for i := 0; i < 3; i++ {
		base := 26 + i*118
		n := strconv.Itoa(i + 1)
		fs = append(fs,
			f("JyusyoTokuNum"+n, base, 4, Text),
			f("JyusyoHondai"+n, base+4, 60, Text),
			f("JyusyoRyakusyo10_"+n, base+64, 20, Text),
			f("JyusyoRyakusyo6_"+n, base+84, 12, Text),
			f("JyusyoRyakusyo3_"+n, base+96, 6, Text),
			f("JyusyoNkai"+n, base+102, 3, Text),
			f("JyusyoGradeCD"+n, base+105, 1, Text),
			f("JyusyoSyubetuCD"+n, base+106, 2, Text),
			f("JyusyoKigoCD"+n, base+108, 3, Text),
			f("JyusyoJyuryoCD"+n, base+111, 1, Text),
			f("JyusyoKyori"+n, base+112, 4, Int),
			f("JyusyoTrackCD"+n, base+116, 2, Text),
		)
	}
	return &Layout{Kind: "YS", Length: 382, Fields: fs, Key: meetingKey}
}

// TK: special-race registration with the registered-runner list.
func tkLayout() *Layout {
	fs := fields(recordHeader(), raceIDFields(), []FieldDef{
		f("YoubiCD", 27, 1, Text),
		f("TokuNum", 28, 4, Text),
		f("Hondai", 32, 60, Text),
		f("Fukudai", 92, 60, Text),
		f("Kakko", 152, 60, Text),
		f("HondaiEng", 212, 120, Text),
		f("FukudaiEng", 332, 120, Text),
		f("KakkoEng", 452, 120, Text),
		f("Ryakusyo10", 572, 20, Text),
		f("Ryakusyo6", 592, 12, Text),
		f("Ryakusyo3", 604, 6, Text),
		f("Kubun", 610, 1, Text),
		f("Nkai", 611, 3, Text),
		f("GradeCD", 614, 1, Text),
		f("SyubetuCD", 615, 2, Text),
		f("KigoCD", 617, 3, Text),
		f("JyuryoCD", 620, 1, Text),
		f("JyokenCD1", 621, 3, Text),
		f("JyokenCD2", 624, 3, Text),
		f("JyokenCD3", 627, 3, Text),
		f("JyokenCD4", 630, 3, Text),
		f("JyokenCD5", 633, 3, Text),
		f("Kyori", 636, 4, Int),
		f("TrackCD", 640, 2, Text),
		f("CourseKubunCD", 642, 2, Text),
		f("HandiDate", 644, 8, Text),
		f("TorokuTosu", 652, 3, Int),
	})
	return &Layout{Kind: "TK", Length: 21657, Fields: fs, Key: raceKey,
		Groups: []GroupDef{
			{Name: "Uma", Offset: 655, Unit: 70, Count: 300,
				Fields: []FieldDef{
					f("Num", 0, 3, Int),
					f("KettoNum", 3, 10, Text),
					f("Bamei", 13, 36, Text),
					f("UmaKigoCD", 49, 2, Text),
					f("SexCD", 51, 1, Text),
					f("TozaiCD", 52, 1, Text),
					f("ChokyosiCode", 53, 5, Text),
					f("ChokyosiRyakusyo", 58, 8, Text),
					fr("Futan", 66, 3, 1),
					f("Koryu", 69, 1, Text),
				},
				Key: []string{"KettoNum"}},
		}}
}

// CK: per-race career standings for a runner and its connections.
func ckLayout() *Layout {
	fs := fields(recordHeader(), raceIDFields(), []FieldDef{
		f("KettoNum", 27, 10, Text),
		f("Bamei", 37, 36, Text),
		f("HonsyokinHeichi", 73, 9, Int),
		f("HonsyokinSyogai", 82, 9, Int),
		f("FukasyokinHeichi", 91, 9, Int),
		f("FukasyokinSyogai", 100, 9, Int),
		f("SyutokuHeichi", 109, 9, Int),
		f("SyutokuSyogai", 118, 9, Int),
	})
	fs = append(fs, statRun("Chakukaisu", 127, 18, chakukaisuMain)...)
	fs = append(fs, statRun("Chakukaisu", 505, 18, []string{
		"Siba1200", "Siba1400", "Siba1600", "Siba1800", "Siba2000",
		"Siba2200", "Siba2400", "Siba2800", "SibaOver2800",
	})...)
	fs = append(fs, statRun("Chakukaisu", 667, 18, []string{
		"Dirt1200", "Dirt1400", "Dirt1600", "Dirt1800", "Dirt2000",
		"Dirt2200", "Dirt2400", "Dirt2800", "DirtOver2800",
	})...)
	jyos := []string{"Sapporo", "Hakodate", "Fukusima", "Niigata", "Tokyo",
		"Nakayama", "Chukyo", "Kyoto", "Hansin", "Kokura"}
	for i, j := range jyos {
		fs = append(fs, f("Chakukaisu"+j+"Siba", 829+i*18, 3, Int))
	}
	for i, j := range jyos {
		fs = append(fs, f("Chakukaisu"+j+"Dirt", 1009+i*18, 3, Int))
	}
	for i, j := range jyos {
		fs = append(fs, f("Chakukaisu"+j+"Syogai", 1189+i*18, 3, Int))
	}
	fs = append(fs,
		f("Kyakusitu", 1369, 3, Int),
		f("RaceCount", 1381, 3, Int),
		f("KisyuCode", 1384, 5, Text),
		f("KisyuName", 1389, 34, Text),
		f("KisyuSeisekiInfo", 1423, 1220, Text),
		f("ChokyosiCode", 3863, 5, Text),
		f("ChokyosiName", 3868, 34, Text),
		f("ChokyosiSeisekiInfo", 3902, 1220, Text),
		f("BanusiCode", 6342, 6, Text),
		f("BanusiNameHojinkaku", 6348, 64, Text),
		f("BanusiName", 6412, 64, Text),
		f("BanusiSeisekiInfo", 6476, 60, Text),
		f("BreederCode", 6596, 8, Text),
		f("BreederNameHojinkaku", 6604, 72, Text),
		f("BreederName", 6676, 72, Text),
		f("BreederSeisekiInfo", 6748, 60, Text),
	)
	return &Layout{Kind: "CK", Length: 6870, Fields: fs,
		Key: append(append([]string{}, raceKey...), "KettoNum")}
}

// WE: weather and going announcement, one per change.
func weLayout() *Layout {
	return &Layout{Kind: "WE", Length: 42,
		Key: append(append([]string{}, meetingKey...), "HappyoTime"),
		Fields: fields(recordHeader(), []FieldDef{
			f("Year", 11, 4, Int),
			f("MonthDay", 15, 4, Text),
			f("JyoCD", 19, 2, Text),
			f("Kaiji", 21, 2, Int),
			f("Nichiji", 23, 2, Int),
			f("HappyoTime", 25, 8, Text),
			f("HenkoID", 33, 1, Text),
			f("TenkoCD", 34, 1, Text),
			f("SibaBabaCD", 35, 1, Text),
			f("DirtBabaCD", 36, 1, Text),
			f("PreTenkoCD", 37, 1, Text),
			f("PreSibaBabaCD", 38, 1, Text),
			f("PreDirtBabaCD", 39, 1, Text),
		})}
}

// WH: pre-race horse weights.
func whLayout() *Layout {
	return &Layout{Kind: "WH", Length: 847, Key: raceKeyHappyo, SkipBase: true,
		Fields: fields(recordHeader(), raceIDFields(), []FieldDef{
			f("HappyoTime", 27, 8, Text),
		}),
		Groups: []GroupDef{
			{Name: "Bataijyu", Offset: 35, Unit: 45, Count: 18,
				Fields: []FieldDef{
					f("Umaban", 0, 2, Int),
					f("Bamei", 2, 36, Text),
					f("BaTaijyu", 38, 3, Int),
					f("ZogenFugo", 41, 1, Text),
					f("ZogenSa", 42, 3, Int),
				},
				Key: []string{"Umaban"}},
		}}
}

// AV: start cancellations and exclusions.
func avLayout() *Layout {
	return &Layout{Kind: "AV", Length: 76,
		Key: append(append([]string{}, raceKey...), "Umaban"),
		Fields: fields(recordHeader(), raceIDFields(), []FieldDef{
			f("HappyoTime", 27, 8, Text),
			f("Umaban", 35, 2, Int),
			f("Bamei", 37, 36, Text),
			f("JiyuCD", 73, 1, Text),
		})}
}

// JC: jockey change.
func jcLayout() *Layout {
	return &Layout{Kind: "JC", Length: 161,
		Key: append(append([]string{}, raceKeyHappyo...), "Umaban"),
		Fields: fields(recordHeader(), raceIDFields(), []FieldDef{
			f("HappyoTime", 27, 8, Text),
			f("Umaban", 35, 2, Int),
			f("Bamei", 37, 36, Text),
			fr("AfterFutan", 73, 3, 1),
			f("AfterKisyuCode", 76, 5, Text),
			f("AfterKisyuName", 81, 34, Text),
			f("AfterMinaraiCD", 115, 1, Text),
			fr("BeforeFutan", 116, 3, 1),
			f("BeforeKisyuCode", 119, 5, Text),
			f("BeforeKisyuName", 124, 34, Text),
			f("BeforeMinaraiCD", 158, 1, Text),
		})}
}

// TC: start-time change.
func tcLayout() *Layout {
	return &Layout{Kind: "TC", Length: 45, Key: raceKeyHappyo,
		Fields: fields(recordHeader(), raceIDFields(), []FieldDef{
			f("HappyoTime", 27, 8, Text),
			f("AfterHassoTime", 35, 4, Text),
			f("BeforeHassoTime", 39, 4, Text),
		})}
}

// CC: course/distance change.
func ccLayout() *Layout {
	return &Layout{Kind: "CC", Length: 50, Key: raceKeyHappyo,
		Fields: fields(recordHeader(), raceIDFields(), []FieldDef{
			f("HappyoTime", 27, 8, Text),
			f("AfterKyori", 35, 4, Int),
			f("AfterTrackCD", 39, 2, Text),
			f("BeforeKyori", 41, 4, Int),
			f("BeforeTrackCD", 45, 2, Text),
			f("JiyuCD", 47, 1, Text),
		})}
}

// JG: entry-ballot outcome per horse.
func jgLayout() *Layout {
	return &Layout{Kind: "JG", Length: 80,
		Key: append(append([]string{}, raceKey...), "KettoNum"),
		Fields: fields(recordHeader(), raceIDFields(), []FieldDef{
			f("KettoNum", 27, 10, Text),
			f("Bamei", 37, 36, Text),
			f("TohyoJun", 73, 3, Int),
			f("SyussoKubun", 76, 1, Text),
			f("JyogaiKubun", 77, 1, Text),
		})}
}

var chokyoKey = []string{"TresenKubun", "ChokyoDate", "ChokyoTime", "KettoNum"}

func chokyoHead() []FieldDef {
	return fields(recordHeader(), []FieldDef{
		f("TresenKubun", 11, 1, Text),
		f("ChokyoDate", 12, 8, Text),
		f("ChokyoTime", 20, 4, Text),
		f("KettoNum", 24, 10, Text),
	})
}

// WC: woodchip course training, sectionals from the 2000m mark.
func wcLayout() *Layout {
	fs := append(chokyoHead(),
		f("Course", 34, 1, Text),
		f("BabaMawari", 35, 1, Text),
	)
	for i := 10; i >= 2; i-- {
		base := 37 + (10-i)*7
		n := strconv.Itoa(i)
		fs = append(fs,
			FieldDef{Name: "HaronTime" + n, Offset: base, Length: 4, Codec: Real, Scale: 1},
			FieldDef{Name: "LapTime" + n, Offset: base + 4, Length: 3, Codec: Real, Scale: 1},
		)
	}
	fs = append(fs, fr("LapTime1", 100, 3, 1))
	return &Layout{Kind: "WC", Length: 105, Fields: fs, Key: chokyoKey}
}

// HC: slope course training, sectionals from the 800m mark.
func hcLayout() *Layout {
	fs := chokyoHead()
	for i := 4; i >= 2; i-- {
		base := 34 + (4-i)*7
		n := strconv.Itoa(i)
		fs = append(fs,
			FieldDef{Name: "HaronTime" + n, Offset: base, Length: 4, Codec: Real, Scale: 1},
			FieldDef{Name: "LapTime" + n, Offset: base + 4, Length: 3, Codec: Real, Scale: 1},
		)
	}
	fs = append(fs, fr("LapTime1", 55, 3, 1))
	return &Layout{Kind: "HC", Length: 60, Fields: fs, Key: chokyoKey}
}

// WF: WIN5 carryover pool.
func wfLayout() *Layout {
	fs := fields(recordHeader(), []FieldDef{
		f("Year", 11, 4, Int),
		f("MonthDay", 15, 4, Text),
	})
	for i := 0; i < 5; i++ {
		base := 21 + i*8
		n := strconv.Itoa(i + 1)
		fs = append(fs,
			f("TargetJyoCD"+n, base, 2, Text),
			f("TargetKaiji"+n, base+2, 2, Int),
			f("TargetNichiji"+n, base+4, 2, Int),
			f("TargetRaceNum"+n, base+6, 2, Int),
		)
	}
	fs = append(fs, f("HatsubaiHyosu", 67, 11, Int))
	fs = append(fs, numbered("YukoHyosu", 78, 11, 11, 5, Int, 0)...)
	fs = append(fs,
		f("HenkanFlag", 133, 1, Text),
		f("FuseirituFlag", 134, 1, Text),
		f("TekichuNashiFlag", 135, 1, Text),
		f("COShokiKingaku", 136, 15, Int),
		f("COZandaka", 151, 15, Int),
	)
	return &Layout{Kind: "WF", Length: 7215, Fields: fs,
		Key: []string{"Year", "MonthDay"},
		Groups: []GroupDef{
			{Name: "Harai", Offset: 166, Unit: 29, Count: 243,
				Fields: []FieldDef{
					f("Kumi", 0, 10, Text),
					f("Pay", 10, 9, Int),
					f("Tekichusu", 19, 10, Int),
				},
				Key: []string{"Kumi"}},
		}}
}

// TM: head-to-head mining scores.
func tmLayout() *Layout {
	return &Layout{Kind: "TM", Length: 159, Key: raceKey, SkipBase: true,
		Fields: fields(recordHeader(), raceIDFields(), []FieldDef{
			f("MakeHM", 27, 4, Text),
		}),
		Carry: append(append([]string{}, raceKey...), "MakeHM"),
		Groups: []GroupDef{
			{Name: "Score", Offset: 31, Unit: 7, Count: 18,
				Fields: []FieldDef{
					f("Umaban", 0, 2, Int),
					fr("TMScore", 2, 5, 1),
				},
				Key: []string{"Umaban"}},
		}}
}

// DM: time-prediction mining.
func dmLayout() *Layout {
	return &Layout{Kind: "DM", Length: 303, Key: raceKey, SkipBase: true,
		Fields: fields(recordHeader(), raceIDFields(), []FieldDef{
			f("MakeHM", 27, 4, Text),
		}),
		Carry: append(append([]string{}, raceKey...), "MakeHM"),
		Groups: []GroupDef{
			{Name: "Yoso", Offset: 31, Unit: 15, Count: 18,
				Fields: []FieldDef{
					f("Umaban", 0, 2, Int),
					f("DMTime", 2, 5, Text),
					f("DMGosaP", 7, 4, Text),
					f("DMGosaM", 11, 4, Text),
				},
				Key: []string{"Umaban"}},
		}}
}
