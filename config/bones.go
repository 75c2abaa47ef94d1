package config

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Skeleton slot names. Where the MGR rigs use another name for the same slot
// the second column carries it.
var boneNameTable = [][2]string{
	{"HIP", ""},
	{"spine_1", ""},
	{"spine_2", "spine_3"},
	{"shoulder_R", ""},
	{"upper_arm_R", ""},
	{"lower_arm_R", ""},
	{"wrist_R", "hand_R"},
	{"shoulder_L", ""},
	{"upper_arm_L", ""},
	{"lower_arm_L", ""},
	{"wrist_L", "hand_L"},
	{"neck", ""},
	{"head", ""},
	{"upper_leg_R", ""},
	{"lower_leg_R", ""},
	{"foot_R", ""},
	{"toe_R", ""},
	{"upper_leg_L", ""},
	{"lower_leg_L", ""},
	{"foot_L", ""},
	{"toe_L", ""},
	{"head_2", ""}, // copy of head, carries all head weights in evm
	{"lower_lip_side_L", ""},
	{"lower_lip_side_R", ""},
	{"lower_lip_corner_L", ""},
	{"lower_lip_corner_R", ""},
	{"eye_L", ""},
	{"eye_R", ""},
	{"eyebrow_upper_L", ""},
	{"eyebrow_L", ""},
	{"eyebrow_lower_L", ""},
	{"eyebrow_upper_R", ""},
	{"eyebrow_R", ""},
	{"eyebrow_lower_R", ""},
	{"upper_lip_side_L", ""},
	{"upper_lip_side_R", ""},
	{"upper_lip_corner_L", ""},
	{"upper_lip_corner_R", ""},
	{"outer_cheek_L", ""},
	{"outer_cheek_R", ""},
	{"nostril_L", ""},
	{"nostril_R", ""},
	{"jaw", ""},
	{"inner_cheek_L", ""},
	{"inner_cheek_R", ""},
	{"lower_eyelid_L", "lower_eyelid_1_L"},
	{"lower_eyelid_R", "lower_eyelid_1_R"},
	{"corner_eyelid_L", "lower_eyelid_2_L"},
	{"upper_eyelid_2_L", ""},
	{"upper_eyelid_1_L", ""},
	{"corner_eyelid_R", "lower_eyelid_2_R"},
	{"upper_eyelid_2_R", ""},
	{"upper_eyelid_1_R", ""},
}

var fingerBaseNames = []string{
	"hand",
	"index_finger_1", "index_finger_2", "index_finder_3",
	"middle_finger_1", "middle_finger_2", "middle_finger_3",
	"thumb_1", "thumb_2", "thumb_3",
	"ring_finger_1", // drives both ring and pinkie
	"ring_finger_2", "ring_finger_3", "ring_finger_4",
	"pinkie_1", "pinkie_2", "pinkie_3",
}

// ExpectedParentBones is the body hierarchy every character rig shares.
var ExpectedParentBones = []int{-1, 0, 1, 2, 3, 4, 5, 2, 7, 8, 9, 2, 11, 0, 13, 14, 15, 0, 17, 18, 19}

var (
	boneNames     []string
	mgrBoneNames  []string
	fingerNames   []string
	boneIndexMap  map[string]int
	fingerIdxMap  map[string]int
	mgrToBoneName map[string]string
)

func init() {
	boneNames = make([]string, len(boneNameTable))
	mgrBoneNames = make([]string, len(boneNameTable))
	boneIndexMap = make(map[string]int, len(boneNameTable))
	mgrToBoneName = make(map[string]string, len(boneNameTable))
	for i, pair := range boneNameTable {
		boneNames[i] = pair[0]
		mgrBoneNames[i] = pair[0]
		if pair[1] != "" {
			mgrBoneNames[i] = pair[1]
		}
		boneIndexMap[pair[0]] = i
		mgrToBoneName[mgrBoneNames[i]] = pair[0]
	}

	fingerNames = make([]string, 0, len(fingerBaseNames)*2)
	for _, side := range []string{"_R", "_L"} {
		for _, name := range fingerBaseNames {
			fingerNames = append(fingerNames, name+side)
		}
	}
	fingerIdxMap = make(map[string]int, len(fingerNames))
	for i, name := range fingerNames {
		fingerIdxMap[name] = i
	}
}

func BoneNames() []string    { return append([]string(nil), boneNames...) }
func MGRBoneNames() []string { return append([]string(nil), mgrBoneNames...) }
func FingerNames() []string  { return append([]string(nil), fingerNames...) }

// MGRToBoneName translates an MGR rig bone name to the slot name used here.
func MGRToBoneName(name string) (string, bool) {
	n, ok := mgrToBoneName[name]
	return n, ok
}

// BoneName names skeleton slot boneIndex. Rigs with fingers place the finger
// bones from fingerIndex on; pass a negative fingerIndex for rigs without.
func BoneName(boneIndex int, fingerIndex int) string {
	if fingerIndex >= 0 && boneIndex >= fingerIndex && boneIndex-fingerIndex < len(fingerNames) {
		return fingerNames[boneIndex-fingerIndex]
	}
	if boneIndex >= 0 && boneIndex < len(boneNames) {
		return boneNames[boneIndex]
	}
	return "bone" + strconv.Itoa(boneIndex)
}

// BoneIndex is the inverse of BoneName. Generic "boneN" names are accepted.
func BoneIndex(name string, fingerIndex int) (int, error) {
	if i, ok := fingerIdxMap[name]; ok {
		return fingerIndex + i, nil
	}
	if i, ok := boneIndexMap[name]; ok {
		return i, nil
	}
	if strings.HasPrefix(name, "bone") {
		if i, err := strconv.Atoi(name[4:]); err == nil && i >= 0 {
			return i, nil
		}
	}
	return 0, errors.Errorf("Could not recognize bone name %q", name)
}

// FingerIndex returns the slot of the first finger bone for a rig that uses
// the given bone names: finger slots follow every named body slot.
func FingerIndex(names []string) int {
	count := 0
	for _, name := range names {
		if _, ok := boneIndexMap[name]; ok {
			count++
		}
	}
	return count
}
